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
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xline-kv/xline-operator/pkg/xline/supervisor"
)

// monitorHeartbeat is the POST /monitor JSON body: HeartbeatStatus with
// lower_snake field names, per §6.
type monitorHeartbeat struct {
	ClusterName string    `json:"cluster_name"`
	Name        string    `json:"name"`
	Timestamp   time.Time `json:"timestamp"`
	Reachable   []string  `json:"reachable"`
}

// Server is the operator's fixed HTTP surface: POST /monitor, GET /metrics,
// GET /healthz.
type Server struct {
	heartbeats chan<- supervisor.HeartbeatStatus
	registry   *prometheus.Registry
	logger     log.Logger
}

// NewServer returns a Server that forwards accepted heartbeats onto
// heartbeats, an unbounded channel drained by the fleet supervisor.
func NewServer(heartbeats chan<- supervisor.HeartbeatStatus, registry *prometheus.Registry, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{heartbeats: heartbeats, registry: registry, logger: logger}
}

// Mux returns the server's routes registered on a fresh ServeMux.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/monitor", s.handleMonitor)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var hb monitorHeartbeat
	if err := json.NewDecoder(r.Body).Decode(&hb); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.heartbeats <- supervisor.HeartbeatStatus{
		ClusterName: hb.ClusterName,
		Name:        hb.Name,
		Timestamp:   hb.Timestamp,
		Reachable:   hb.Reachable,
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
