// Copyright 2024 The xline-operator Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sidecar implements the per-member reconcile loop, heartbeat
// reporter, and HTTP surface that run alongside a managed-service process.
package sidecar

import "sync"

// State is the sidecar's published lifecycle state.
type State string

const (
	// StateStart means the member is waiting for every peer to reach
	// Start before the seeder brings the cluster up.
	StateStart State = "Start"
	// StatePending means the member's process is joining or the cluster
	// is not yet healthy.
	StatePending State = "Pending"
	// StateOK means the cluster is healthy and this member's process is
	// running.
	StateOK State = "OK"
)

// Payload is the sidecar's current state as published over HTTP, and
// consumed by peers building a Snapshot.
type Payload struct {
	State    State `json:"state"`
	Revision int64 `json:"revision"`
}

// Snapshot summarizes peer state payloads gathered by the reconciler: who
// the seeder is and how many peers report each state.
type Snapshot struct {
	Seeder string             `json:"seeder"`
	States map[State]int      `json:"states"`
	Peers  map[string]Payload `json:"-"`
}

// PayloadStore is the mutex-guarded holder of this member's own state
// payload, read by the HTTP surface and written by the reconciler.
type PayloadStore struct {
	mu      sync.Mutex
	payload Payload
}

// Get returns the current payload.
func (s *PayloadStore) Get() Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// Set replaces the current payload.
func (s *PayloadStore) Set(p Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payload = p
}

// Seeder picks the peer with the highest revision, breaking ties by
// lexicographically smallest name.
func Seeder(peers map[string]Payload) string {
	var (
		seeder  string
		bestRev int64 = -1
	)
	for name, p := range peers {
		if p.Revision > bestRev || (p.Revision == bestRev && name < seeder) {
			seeder, bestRev = name, p.Revision
		}
	}
	return seeder
}

// BuildSnapshot aggregates peer payloads into a Snapshot.
func BuildSnapshot(peers map[string]Payload) Snapshot {
	states := make(map[State]int, 3)
	for _, p := range peers {
		states[p.State]++
	}
	return Snapshot{Seeder: Seeder(peers), States: states, Peers: peers}
}

// Majority is floor(size/2) + 1.
func Majority(size int) int {
	return size/2 + 1
}
