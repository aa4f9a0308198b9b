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

package operator

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xline-kv/xline-operator/pkg/xline/supervisor"
)

func TestMonitorForwardsHeartbeatOntoChannel(t *testing.T) {
	ch := make(chan supervisor.HeartbeatStatus, 1)
	s := NewServer(ch, prometheus.NewRegistry(), nil)

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	body, err := json.Marshal(map[string]interface{}{
		"cluster_name": "demo",
		"name":         "demo-0",
		"timestamp":    ts,
		"reachable":    []string{"demo-0", "demo-1"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/monitor", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	select {
	case hb := <-ch:
		assert.Equal(t, "demo", hb.ClusterName)
		assert.Equal(t, "demo-0", hb.Name)
		assert.ElementsMatch(t, []string{"demo-0", "demo-1"}, hb.Reachable)
	default:
		t.Fatal("expected a heartbeat on the channel")
	}
}

func TestMonitorRejectsNonPost(t *testing.T) {
	ch := make(chan supervisor.HeartbeatStatus, 1)
	s := NewServer(ch, prometheus.NewRegistry(), nil)

	req := httptest.NewRequest("GET", "/monitor", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, 405, rec.Code)
}

func TestHealthzAlwaysOK(t *testing.T) {
	ch := make(chan supervisor.HeartbeatStatus, 1)
	s := NewServer(ch, prometheus.NewRegistry(), nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
}

func TestMetricsServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ManagedClusters.Set(2)
	ch := make(chan supervisor.HeartbeatStatus, 1)
	s := NewServer(ch, reg, nil)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Mux().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "xline_operator_managed_clusters 2")
}
