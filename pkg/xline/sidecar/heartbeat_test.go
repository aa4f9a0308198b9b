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
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xline-kv/xline-operator/pkg/xline/member"
	"github.com/xline-kv/xline-operator/pkg/xline/registry"
)

func TestHeartbeatTickPostsReachableSelf(t *testing.T) {
	var received HeartbeatStatus
	monitor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer monitor.Close()

	cfg, err := member.NewConfig("c-0", "demo", map[string]string{"c-0": "127.0.0.1"}, 2379, 2380)
	require.NoError(t, err)
	reg := registry.NewStatic(registry.Result{Members: map[string]string{"c-0": "127.0.0.1"}, TargetSize: 1})

	reporter := NewHeartbeatReporter(cfg, reg, monitor.URL, time.Hour, nil)
	require.NoError(t, reporter.tick(context.Background()))

	assert.Equal(t, "demo", received.ClusterName)
	assert.Equal(t, "c-0", received.Name)
	assert.Equal(t, []string{"c-0"}, received.Reachable)
}

func TestHeartbeatIncludesReachablePeer(t *testing.T) {
	peerSidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer peerSidecar.Close()

	var received HeartbeatStatus
	monitor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer monitor.Close()

	peerHostPort := peerSidecar.Listener.Addr().String()
	host, port := splitAddr(peerHostPort)

	cfg, err := member.NewConfig("c-0", "demo", map[string]string{"c-0": "self-unreachable", "c-1": host}, 2379, port)
	require.NoError(t, err)
	reg := registry.NewStatic(registry.Result{Members: cfg.InitMembers, TargetSize: 2})

	reporter := NewHeartbeatReporter(cfg, reg, monitor.URL, time.Hour, nil)
	require.NoError(t, reporter.tick(context.Background()))

	assert.ElementsMatch(t, []string{"c-0", "c-1"}, received.Reachable)
}

func splitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
