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

// Package xclient narrows the managed service's wire client down to the
// handful of RPCs the sidecar needs: membership changes, a revision probe,
// and a consistent snapshot stream. The managed service speaks the etcd
// v3 wire protocol, so the concrete implementation is a thin wrapper over
// go.etcd.io/etcd/client/v3.
package xclient

import (
	"context"
	"io"
)

// Member is one entry in the managed service's cluster membership list.
type Member struct {
	ID       uint64
	Name     string
	PeerURLs []string
}

// Client is the capability surface the member handle drives. Implementations
// must be safe to discard and recreate on every apply_members call: callers
// never attempt to mutate a live client's endpoint set in place.
type Client interface {
	// MemberList returns the cluster's current membership.
	MemberList(ctx context.Context) ([]Member, error)
	// MemberAdd registers a new member with the given peer URLs and returns
	// its assigned server id.
	MemberAdd(ctx context.Context, peerURLs []string) (uint64, error)
	// MemberUpdate changes the peer URLs of an existing member.
	MemberUpdate(ctx context.Context, id uint64, peerURLs []string) error
	// MemberRemove removes a member from the cluster.
	MemberRemove(ctx context.Context, id uint64) error
	// Revision issues a range read over an empty key range and returns the
	// response header's revision. serializable controls read consistency;
	// a linearizable (non-serializable) read doubles as a health probe.
	Revision(ctx context.Context, serializable bool) (int64, error)
	// Serving reports whether the process answers the wire protocol's
	// health check RPC.
	Serving(ctx context.Context) bool
	// Snapshot opens a streaming consistent snapshot of the whole
	// keyspace. The caller must close the returned reader.
	Snapshot(ctx context.Context) (io.ReadCloser, error)
	// Close releases any underlying connections.
	Close() error
}

// Dialer opens a Client against a set of host:port endpoints.
type Dialer interface {
	Dial(ctx context.Context, endpoints []string) (Client, error)
}
