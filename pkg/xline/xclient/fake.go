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

package xclient

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// Fake is an in-memory Client for sidecar tests that never talk to a real
// managed-service process.
type Fake struct {
	mu sync.Mutex

	Endpoints    []string
	Members      []Member
	NextID       uint64
	RevisionVal  int64
	ServingVal   bool
	SnapshotData []byte
	Closed       bool

	RevisionErr error
}

// NewFake returns a Fake with no members, NextID 1 and ServingVal true.
func NewFake(endpoints []string) *Fake {
	return &Fake{Endpoints: endpoints, NextID: 1, ServingVal: true}
}

func (f *Fake) MemberList(context.Context) ([]Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Member, len(f.Members))
	copy(out, f.Members)
	return out, nil
}

func (f *Fake) MemberAdd(_ context.Context, peerURLs []string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.NextID
	f.NextID++
	f.Members = append(f.Members, Member{ID: id, PeerURLs: peerURLs})
	return id, nil
}

func (f *Fake) MemberUpdate(_ context.Context, id uint64, peerURLs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.Members {
		if m.ID == id {
			f.Members[i].PeerURLs = peerURLs
			return nil
		}
	}
	return nil
}

func (f *Fake) MemberRemove(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.Members {
		if m.ID == id {
			f.Members = append(f.Members[:i], f.Members[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *Fake) Revision(context.Context, bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.RevisionErr != nil {
		return 0, f.RevisionErr
	}
	return f.RevisionVal, nil
}

func (f *Fake) Serving(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ServingVal
}

func (f *Fake) Snapshot(context.Context) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(bytes.NewReader(f.SnapshotData)), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// FakeDialer hands out pre-built Fake clients keyed by nothing: every Dial
// call returns the same *Fake so tests can inspect state across
// apply_members calls.
type FakeDialer struct {
	Client *Fake
}

func (d *FakeDialer) Dial(_ context.Context, endpoints []string) (Client, error) {
	d.Client.Endpoints = endpoints
	return d.Client, nil
}
