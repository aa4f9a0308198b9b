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

// Package supervisor implements the fleet supervisor (C11): it ingests
// sidecar heartbeats, computes per-member reachability across a quorum
// of time-proximate reports, and deletes pods that fall below quorum for
// too long so the workload controller recreates them.
package supervisor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// HeartbeatStatus mirrors sidecar.HeartbeatStatus; duplicated here to keep
// this package free of a dependency on the sidecar package.
type HeartbeatStatus struct {
	ClusterName string
	Name        string
	Timestamp   time.Time
	Reachable   []string
}

// SizeLookup resolves the current desired size of a cluster, so the
// supervisor can compute majority without holding its own copy of the
// cluster spec.
type SizeLookup interface {
	ClusterSize(ctx context.Context, clusterName string) (int, error)
}

// PodDeleter deletes the platform pod backing a named member so the
// workload controller recreates it.
type PodDeleter interface {
	DeletePod(ctx context.Context, clusterName, memberName string) error
}

type clusterState struct {
	statuses    map[string]HeartbeatStatus
	unreachable map[string]int
}

// Supervisor holds per-cluster heartbeat state. It is safe for concurrent
// use; heartbeats are typically fed from a single consumer goroutine
// draining an unbounded channel, but Ingest itself may be called from
// multiple goroutines.
type Supervisor struct {
	mu       sync.Mutex
	clusters map[string]*clusterState

	sizes  SizeLookup
	pods   PodDeleter
	logger log.Logger

	heartbeatPeriod   time.Duration
	unreachableThresh int
	now               func() time.Time
}

// Config controls the supervisor's thresholds.
type Config struct {
	// HeartbeatPeriod bounds how old an accepted status may be relative to
	// the latest in its cluster, and how far local clock and latest
	// timestamp may diverge before the whole snapshot is rejected.
	HeartbeatPeriod time.Duration
	// UnreachableThresh is the number of consecutive below-majority ticks
	// before the supervisor gives up recovering a member and stops
	// tracking it.
	UnreachableThresh int
}

// New returns a Supervisor.
func New(sizes SizeLookup, pods PodDeleter, cfg Config, logger log.Logger) *Supervisor {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Supervisor{
		clusters:          make(map[string]*clusterState),
		sizes:             sizes,
		pods:              pods,
		logger:            logger,
		heartbeatPeriod:   cfg.HeartbeatPeriod,
		unreachableThresh: cfg.UnreachableThresh,
		now:               time.Now,
	}
}

// Run drains heartbeats from in until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context, in <-chan HeartbeatStatus) {
	for {
		select {
		case <-ctx.Done():
			return
		case hb, ok := <-in:
			if !ok {
				return
			}
			if err := s.Ingest(ctx, hb); err != nil {
				level.Warn(s.logger).Log("msg", "heartbeat ingest suppressed", "cluster", hb.ClusterName, "member", hb.Name, "err", err)
			}
		}
	}
}

// Ingest applies one heartbeat per the §4.11 algorithm: store it, compute
// per-member reachable counts across accepted statuses, and act on
// members that fall below majority for too long.
func (s *Supervisor) Ingest(ctx context.Context, hb HeartbeatStatus) error {
	size, err := s.sizes.ClusterSize(ctx, hb.ClusterName)
	if err != nil {
		return err
	}
	majority := size/2 + 1

	s.mu.Lock()
	cs, ok := s.clusters[hb.ClusterName]
	if !ok {
		cs = &clusterState{statuses: map[string]HeartbeatStatus{}, unreachable: map[string]int{}}
		s.clusters[hb.ClusterName] = cs
	}
	cs.statuses[hb.Name] = hb

	latest := latestTimestamp(cs.statuses)
	if d := s.now().Sub(latest); d > s.heartbeatPeriod || -d > s.heartbeatPeriod {
		s.mu.Unlock()
		return xlineutil.ErrClockSkew
	}

	accepted := acceptedStatuses(cs.statuses, latest, s.heartbeatPeriod)
	if len(accepted) < majority {
		s.mu.Unlock()
		return xlineutil.ErrQuorumLoss
	}

	counts := reachableCounts(accepted)
	actions := s.applyCounts(hb.ClusterName, cs, counts, majority)
	s.mu.Unlock()

	for _, a := range actions {
		s.act(ctx, hb.ClusterName, a)
	}
	return nil
}

type memberAction struct {
	name  string
	evict bool
}

// applyCounts updates cs.unreachable in place and returns the members to
// evict. Must be called with s.mu held.
func (s *Supervisor) applyCounts(clusterName string, cs *clusterState, counts map[string]int, majority int) []memberAction {
	var actions []memberAction
	for member := range cs.statuses {
		count := counts[member]
		if count >= majority {
			delete(cs.unreachable, member)
			continue
		}
		n, tracked := cs.unreachable[member]
		if tracked {
			n++
			if n >= s.unreachableThresh {
				level.Info(s.logger).Log("msg", "giving up on unreachable member, dropping from tracking", "cluster", clusterName, "member", member, "thresh", s.unreachableThresh)
				delete(cs.unreachable, member)
				delete(cs.statuses, member)
				continue
			}
			cs.unreachable[member] = n
			continue
		}
		cs.unreachable[member] = 0
		actions = append(actions, memberAction{name: member, evict: true})
	}
	return actions
}

func (s *Supervisor) act(ctx context.Context, clusterName string, a memberAction) {
	if !a.evict {
		return
	}
	if err := s.pods.DeletePod(ctx, clusterName, a.name); err != nil {
		level.Warn(s.logger).Log("msg", "pod eviction failed", "cluster", clusterName, "member", a.name, "err", err)
		return
	}
	level.Info(s.logger).Log("msg", "deleted unreachable member's pod", "cluster", clusterName, "member", a.name)
}

func latestTimestamp(statuses map[string]HeartbeatStatus) time.Time {
	var latest time.Time
	for _, st := range statuses {
		if st.Timestamp.After(latest) {
			latest = st.Timestamp
		}
	}
	return latest
}

func acceptedStatuses(statuses map[string]HeartbeatStatus, latest time.Time, period time.Duration) map[string]HeartbeatStatus {
	out := make(map[string]HeartbeatStatus, len(statuses))
	for name, st := range statuses {
		if latest.Sub(st.Timestamp) <= period {
			out[name] = st
		}
	}
	return out
}

func reachableCounts(accepted map[string]HeartbeatStatus) map[string]int {
	counts := map[string]int{}
	for _, st := range accepted {
		for _, r := range st.Reachable {
			counts[r]++
		}
	}
	return counts
}

// Members returns the sorted member names currently tracked for cluster,
// for diagnostics/tests.
func (s *Supervisor) Members(clusterName string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cs, ok := s.clusters[clusterName]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(cs.statuses))
	for n := range cs.statuses {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
