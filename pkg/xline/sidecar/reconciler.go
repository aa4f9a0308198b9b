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

package sidecar

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/xline-kv/xline-operator/pkg/xline/member"
	"github.com/xline-kv/xline-operator/pkg/xline/registry"
	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// Reconciler is the state machine described in the sidecar reconcile
// design: every tick it observes cluster health and local process state
// and applies the matching transition.
type Reconciler struct {
	cfg     member.Config
	reg     registry.Registry
	mh      *member.Handle
	peers   *PeerClient
	payload *PayloadStore
	metrics *Metrics
	logger  log.Logger

	interval time.Duration
}

// NewReconciler builds a Reconciler. payload is shared with the HTTP
// surface so /state always reflects the latest published state.
func NewReconciler(cfg member.Config, reg registry.Registry, mh *member.Handle, peers *PeerClient, payload *PayloadStore, metrics *Metrics, logger log.Logger) *Reconciler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Reconciler{cfg: cfg, reg: reg, mh: mh, peers: peers, payload: payload, metrics: metrics, logger: logger, interval: 10 * time.Second}
}

// WithInterval overrides the default reconcile_interval.
func (r *Reconciler) WithInterval(d time.Duration) *Reconciler {
	r.interval = d
	return r
}

// Run blocks until ctx is cancelled, performing the bootstrap sequence
// then looping at r.interval. Missed ticks are skipped, never back-filled.
func (r *Reconciler) Run(ctx context.Context) error {
	selfHost := r.cfg.InitMembers[r.cfg.SelfName]
	res, err := registry.WaitFullFetch(ctx, r.logger, r.reg, r.cfg.SelfName, selfHost)
	if err != nil {
		return err
	}

	managed := withPort(res.Members, r.cfg.ManagedPort)

	if err := r.mh.Start(ctx, managed); err != nil {
		return err
	}
	r.metrics.Seed.Inc()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	start := time.Now()
	err := r.tickOnce(ctx)
	r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.ReconcileFailed.WithLabelValues(xlineutil.Reason(err)).Inc()
		level.Warn(r.logger).Log("msg", "reconcile tick failed", "err", err)
	}
}

func (r *Reconciler) tickOnce(ctx context.Context) error {
	selfHost := r.cfg.InitMembers[r.cfg.SelfName]
	res, err := r.reg.Fetch(ctx, r.cfg.SelfName, selfHost)
	if err != nil {
		return err
	}
	managedMembers := withPort(res.Members, r.cfg.ManagedPort)
	sidecarMembers := withPort(res.Members, r.cfg.SidecarPort)

	if err := r.mh.ApplyMembers(ctx, managedMembers); err != nil {
		return err
	}

	healthy := r.mh.IsHealthy(ctx)
	running := r.mh.IsRunning(ctx)
	revision := r.currentRevision(ctx, running)

	peerPayloads := r.peers.FetchAll(ctx, sidecarMembers, r.cfg.SelfName, Payload{State: r.payload.Get().State, Revision: revision})
	snapshot := BuildSnapshot(peerPayloads)
	majority := Majority(res.TargetSize)

	switch {
	case healthy && running:
		r.publish(StateOK, revision)

	case healthy && !running:
		r.publish(StatePending, revision)
		if err := r.mh.Start(ctx, managedMembers); err != nil {
			return err
		}
		r.metrics.RestartManaged.Inc()

	case !healthy && running:
		r.publish(StatePending, revision)
		if snapshot.States[StateOK] >= majority {
			return nil
		}
		if err := r.mh.Backup(ctx); err != nil {
			level.Warn(r.logger).Log("msg", "pre-stop backup failed", "err", err)
		}
		return r.mh.Stop(ctx)

	case !healthy && !running:
		isSeeder := snapshot.Seeder == r.cfg.SelfName
		if !isSeeder {
			if err := r.mh.InstallBackup(ctx); err != nil {
				return err
			}
		}
		r.publish(StateStart, revision)
		if snapshot.States[StateStart] >= res.TargetSize && isSeeder {
			if err := r.mh.Start(ctx, managedMembers); err != nil {
				return err
			}
			r.metrics.Seed.Inc()
		}
	}
	return nil
}

// currentRevision takes the max of every revision source this sidecar can
// currently observe. RevisionOffline reads the on-disk data directory
// directly and is only safe while the managed process is stopped: reading it
// while xline is running could observe a torn write mid-compaction, so it is
// only consulted when running is false.
func (r *Reconciler) currentRevision(ctx context.Context, running bool) int64 {
	var best int64
	if online, err := r.mh.RevisionOnline(ctx); err == nil && online > best {
		best = online
	}
	if !running {
		if offline, err := r.mh.RevisionOffline(); err == nil && offline > best {
			best = offline
		}
	}
	if remote, err := r.mh.RevisionRemote(ctx); err == nil && remote > best {
		best = remote
	}
	return best
}

func (r *Reconciler) publish(s State, revision int64) {
	r.payload.Set(Payload{State: s, Revision: revision})
}

func withPort(hosts map[string]string, port int) map[string]string {
	out := make(map[string]string, len(hosts))
	for name, host := range hosts {
		out[name] = fmt.Sprintf("%s:%d", host, port)
	}
	return out
}
