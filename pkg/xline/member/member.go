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

// Package member implements the per-sidecar façade over the backup
// provider, process handle, and managed-service client: the operations a
// reconciler needs to bring a member up, tear it down, and move data in and
// out of it.
package member

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/xline-kv/xline-operator/pkg/xline/backup"
	"github.com/xline-kv/xline-operator/pkg/xline/process"
	"github.com/xline-kv/xline-operator/pkg/xline/xclient"
	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// IsHealthyRetries bounds the number of linearizable read probes IsHealthy
// issues before giving up.
const IsHealthyRetries = 5

// Handle is the per-member façade described by the sidecar reconciler. It
// is guarded by a reader-writer lock: Backup, IsRunning, IsHealthy and the
// RevisionOnline/RevisionRemote/RevisionOffline readers take a read lock;
// Start, Stop, ApplyMembers, InstallBackup, and Cleanup take a write lock.
type Handle struct {
	mu sync.RWMutex

	name      string
	localAddr string
	dataDir   string

	backup backup.Provider // optional
	inner  process.Handle
	dial   xclient.Dialer
	logger log.Logger

	client   xclient.Client // nil until Start or ApplyMembers succeeds
	serverID uint64

	// reachable tests whether addr accepts a connection within timeout.
	// Overridable in tests; defaults to a real network probe.
	reachable func(ctx context.Context, addr string, timeout time.Duration) bool
}

// Open constructs a Handle but does not start the managed-service process.
// localAddr is this member's own managed-service address
// ("host:managed_port"), used for local health/running probes.
func Open(name, localAddr, dataDir string, bp backup.Provider, inner process.Handle, dial xclient.Dialer, logger log.Logger) *Handle {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Handle{
		name:      name,
		localAddr: localAddr,
		dataDir:   dataDir,
		backup:    bp,
		inner:     inner,
		dial:      dial,
		logger:    logger,
		reachable: xclient.Reachable,
	}
}

// Start brings the managed-service process up against members (name ->
// "host:port"), seeding a fresh cluster if no peer is reachable, then joins
// or updates this member's registration in the cluster's membership list.
func (h *Handle) Start(ctx context.Context, members map[string]string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	peersReachable := false
	for name, addr := range members {
		if name == h.name {
			continue
		}
		if h.reachable(ctx, addr, xclient.ConnectTimeout) {
			peersReachable = true
			break
		}
	}

	startSet := members
	if !peersReachable {
		self, ok := members[h.name]
		if !ok {
			return errors.Errorf("member %s missing from its own member set", h.name)
		}
		startSet = map[string]string{h.name: self}
	}

	if err := h.inner.Start(ctx, startSet); err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "starting %s: %v", h.name, err)
	}

	client, err := h.dial.Dial(ctx, sortedAddrs(members))
	if err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "dialing managed client for %s: %v", h.name, err)
	}
	if h.client != nil {
		_ = h.client.Close()
	}
	h.client = client

	existing, err := client.MemberList(ctx)
	if err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "listing members: %v", err)
	}

	selfAddr := members[h.name]
	var found *xclient.Member
	for i := range existing {
		if existing[i].Name == h.name {
			found = &existing[i]
			break
		}
	}
	if found != nil {
		if err := client.MemberUpdate(ctx, found.ID, []string{selfAddr}); err != nil {
			return errors.Wrapf(xlineutil.ErrProcessFailure, "updating member %s: %v", h.name, err)
		}
		h.serverID = found.ID
	} else {
		id, err := client.MemberAdd(ctx, []string{selfAddr})
		if err != nil {
			return errors.Wrapf(xlineutil.ErrProcessFailure, "adding member %s: %v", h.name, err)
		}
		h.serverID = id
	}
	return nil
}

// Stop removes this member from the cluster (if healthy) and kills the
// local process.
func (h *Handle) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil && h.isHealthyLocked(ctx) {
		if err := h.client.MemberRemove(ctx, h.serverID); err != nil {
			level.Warn(h.logger).Log("msg", "member-remove failed, continuing with kill", "name", h.name, "err", err)
		}
	}
	if err := h.inner.Kill(ctx); err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "killing %s: %v", h.name, err)
	}
	return nil
}

// ApplyMembers re-opens the managed-service client over the new address
// set. It never mutates cluster-side membership.
func (h *Handle) ApplyMembers(ctx context.Context, members map[string]string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, err := h.dial.Dial(ctx, sortedAddrs(members))
	if err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "dialing managed client for %s: %v", h.name, err)
	}
	if h.client != nil {
		_ = h.client.Close()
	}
	h.client = client
	return nil
}

// IsRunning issues a health-check RPC against the local endpoint.
func (h *Handle) IsRunning(ctx context.Context) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, err := h.dial.Dial(ctx, []string{h.localAddr})
	if err != nil {
		return false
	}
	defer client.Close()
	return client.Serving(ctx)
}

// IsHealthy issues up to IsHealthyRetries linearizable read probes and
// returns true if any succeeds.
func (h *Handle) IsHealthy(ctx context.Context) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.isHealthyLocked(ctx)
}

func (h *Handle) isHealthyLocked(ctx context.Context) bool {
	if h.client == nil {
		return false
	}
	for i := 0; i < IsHealthyRetries; i++ {
		if _, err := h.client.Revision(ctx, false); err == nil {
			return true
		}
	}
	return false
}

// RevisionOnline issues an empty-key read and returns the response
// header's revision.
func (h *Handle) RevisionOnline(ctx context.Context) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.client == nil {
		return 0, errors.Wrap(xlineutil.ErrProcessFailure, "no managed client open")
	}
	return h.client.Revision(ctx, false)
}

// RevisionRemote returns the revision of the latest remote backup, or 0 if
// there is no backup provider or no snapshot yet.
func (h *Handle) RevisionRemote(ctx context.Context) (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.backup == nil {
		return 0, nil
	}
	meta, found, err := h.backup.Latest(ctx)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return meta.Revision, nil
}

// RevisionOffline reads the revision encoded in the local on-disk
// key-value table. Precondition: the managed-service process must be
// stopped.
func (h *Handle) RevisionOffline() (int64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return revisionOffline(h.dataDir)
}

// Backup streams a live snapshot to the backup provider unless a newer
// remote snapshot already exists.
func (h *Handle) Backup(ctx context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.backup == nil {
		return errors.Wrap(xlineutil.ErrStoreUnavailable, "no backup provider configured")
	}
	if h.client == nil {
		return errors.Wrap(xlineutil.ErrProcessFailure, "no managed client open")
	}

	local, err := h.client.Revision(ctx, false)
	if err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "reading online revision: %v", err)
	}

	remoteMeta, found, err := h.backup.Latest(ctx)
	if err != nil {
		return err
	}
	if found && remoteMeta.Revision > local {
		return nil
	}

	stream, err := h.client.Snapshot(ctx)
	if err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "opening snapshot stream: %v", err)
	}
	defer stream.Close()

	return h.backup.Save(ctx, backup.Metadata{Name: h.name, Revision: local}, stream)
}

// InstallBackup copies the latest remote snapshot into the local data
// directory if it is missing or stale. Precondition: process stopped.
func (h *Handle) InstallBackup(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.backup == nil {
		return errors.Wrap(xlineutil.ErrStoreUnavailable, "no backup provider configured")
	}

	meta, found, err := h.backup.Latest(ctx)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	_, statErr := os.Stat(h.dataDir)
	dataDirExists := statErr == nil

	if dataDirExists {
		offline, err := revisionOffline(h.dataDir)
		if err != nil {
			return err
		}
		if meta.Revision <= offline {
			return nil
		}
		if err := os.RemoveAll(h.dataDir); err != nil {
			return errors.Wrapf(xlineutil.ErrProcessFailure, "clearing data dir %s: %v", h.dataDir, err)
		}
	}

	localPath, err := h.backup.Load(ctx, meta)
	if err != nil {
		return err
	}
	return copyInto(localPath, filepath.Join(h.dataDir, offlineDBFile))
}

// Cleanup removes the local data directory.
func (h *Handle) Cleanup() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := os.RemoveAll(h.dataDir); err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "removing data dir %s: %v", h.dataDir, err)
	}
	return nil
}

func copyInto(srcPath, dstPath string) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o700); err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "creating data dir: %v", err)
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "opening snapshot %s: %v", srcPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "creating %s: %v", dstPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrapf(xlineutil.ErrProcessFailure, "restoring snapshot into %s: %v", dstPath, err)
	}
	return nil
}
