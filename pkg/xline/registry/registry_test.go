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

package registry

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

func TestWaitFullFetchReturnsOnceFull(t *testing.T) {
	r := NewStatic(Result{Members: map[string]string{"a": "h1", "b": "h2"}, TargetSize: 2})
	res, err := WaitFullFetch(context.Background(), log.NewNopLogger(), r, "a", "h1")
	require.NoError(t, err)
	assert.Len(t, res.Members, 2)
}

type partialRegistry struct {
	calls int
}

func (p *partialRegistry) Fetch(context.Context, string, string) (Result, error) {
	p.calls++
	return Result{Members: map[string]string{"a": "h1"}, TargetSize: 2}, nil
}

func TestWaitFullFetchTimesOut(t *testing.T) {
	orig := WaitDelay
	defer func() { WaitDelay = orig }()
	WaitDelay = time.Millisecond

	_, err := WaitFullFetch(context.Background(), log.NewNopLogger(), &partialRegistry{}, "a", "h1")
	require.Error(t, err)
	assert.ErrorIs(t, err, xlineutil.ErrFullConfigTimeout)
}

func TestWaitFullFetchRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WaitFullFetch(ctx, log.NewNopLogger(), &partialRegistry{}, "a", "h1")
	require.Error(t, err)
}

func TestHTTPRegistryRoundTrip(t *testing.T) {
	srv := NewServer(2, time.Minute)
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := NewHTTP(ts.URL, "demo")
	res, err := client.Fetch(context.Background(), "c-0", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.TargetSize)
	assert.Equal(t, map[string]string{"c-0": "10.0.0.1"}, res.Members)

	res, err = client.Fetch(context.Background(), "c-1", "10.0.0.2")
	require.NoError(t, err)
	assert.Len(t, res.Members, 2)
}

func TestHTTPRegistryExpiresStaleEntries(t *testing.T) {
	srv := NewServer(2, time.Millisecond)
	resp := srv.register("demo", "c-0", "10.0.0.1")
	assert.Len(t, resp.Members, 1)

	time.Sleep(5 * time.Millisecond)
	resp = srv.register("demo", "c-1", "10.0.0.2")
	assert.Len(t, resp.Members, 1)
	assert.Equal(t, "10.0.0.2", resp.Members["c-1"])
}

func TestWorkloadRegistryFetch(t *testing.T) {
	replicas := int32(3)
	ss := &appsv1.StatefulSet{
		ObjectMeta: metav1.ObjectMeta{Name: "demo", Namespace: "ns"},
		Spec:       appsv1.StatefulSetSpec{Replicas: &replicas},
	}
	client := fake.NewSimpleClientset(ss)
	w := NewWorkload(client, "ns", "demo", "demo-headless", "cluster.local")

	res, err := w.Fetch(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, res.TargetSize)
	assert.Equal(t, "demo-0.demo-headless.ns.svc.cluster.local", res.Members["demo-0"])
	assert.Len(t, res.Members, 3)
}

func TestWorkloadRegistryNotFound(t *testing.T) {
	client := fake.NewSimpleClientset()
	w := NewWorkload(client, "ns", "missing", "svc", "cluster.local")
	_, err := w.Fetch(context.Background(), "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, xlineutil.ErrNotFound)
}
