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
	"context"
	"io"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ConnectTimeout is the per-peer connect deadline member.Handle.Start uses to
// decide whether a cluster is already running before seeding. Connect also
// uses it as the client's dial timeout.
const ConnectTimeout = 3 * time.Second

// EtcdDialer dials the managed service over its etcd-compatible wire
// protocol.
type EtcdDialer struct{}

// Dial implements Dialer.
func (EtcdDialer) Dial(ctx context.Context, endpoints []string) (Client, error) {
	return Connect(ctx, endpoints)
}

// EtcdClient implements Client against an etcd v3-protocol endpoint.
type EtcdClient struct {
	inner *clientv3.Client
}

// Connect opens a client against endpoints, each formatted "host:port".
func Connect(ctx context.Context, endpoints []string) (*EtcdClient, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   httpEndpoints(endpoints),
		DialTimeout: ConnectTimeout,
		Context:     ctx,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdClient{inner: cli}, nil
}

func httpEndpoints(addrs []string) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = "http://" + a
	}
	return out
}

// MemberList implements Client.
func (c *EtcdClient) MemberList(ctx context.Context) ([]Member, error) {
	resp, err := c.inner.MemberList(ctx)
	if err != nil {
		return nil, err
	}
	members := make([]Member, 0, len(resp.Members))
	for _, m := range resp.Members {
		members = append(members, Member{ID: m.ID, Name: m.Name, PeerURLs: m.PeerURLs})
	}
	return members, nil
}

// MemberAdd implements Client.
func (c *EtcdClient) MemberAdd(ctx context.Context, peerURLs []string) (uint64, error) {
	resp, err := c.inner.MemberAdd(ctx, peerURLs)
	if err != nil {
		return 0, err
	}
	return resp.Member.ID, nil
}

// MemberUpdate implements Client.
func (c *EtcdClient) MemberUpdate(ctx context.Context, id uint64, peerURLs []string) error {
	_, err := c.inner.MemberUpdate(ctx, id, peerURLs)
	return err
}

// MemberRemove implements Client.
func (c *EtcdClient) MemberRemove(ctx context.Context, id uint64) error {
	_, err := c.inner.MemberRemove(ctx, id)
	return err
}

// Revision implements Client.
func (c *EtcdClient) Revision(ctx context.Context, serializable bool) (int64, error) {
	opts := []clientv3.OpOption{}
	if serializable {
		opts = append(opts, clientv3.WithSerializable())
	}
	resp, err := c.inner.Get(ctx, "", opts...)
	if err != nil {
		return 0, err
	}
	return resp.Header.Revision, nil
}

// Serving implements Client.
func (c *EtcdClient) Serving(ctx context.Context) bool {
	conn, err := grpc.DialContext(ctx, c.inner.Endpoints()[0], grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock())
	if err != nil {
		return false
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return false
	}
	return resp.Status == healthpb.HealthCheckResponse_SERVING
}

// Snapshot implements Client.
func (c *EtcdClient) Snapshot(ctx context.Context) (io.ReadCloser, error) {
	return c.inner.Snapshot(ctx)
}

// Close implements Client.
func (c *EtcdClient) Close() error {
	return c.inner.Close()
}

// Reachable reports whether addr accepts a connection within timeout,
// without establishing a full client. Used to decide whether a cluster is
// already running before a cold-start seed.
func Reachable(ctx context.Context, addr string, timeout time.Duration) bool {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, addr, grpc.WithTransportCredentials(insecure.NewCredentials()), grpc.WithBlock())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
