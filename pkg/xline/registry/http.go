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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// HTTP registers with a registry HTTP server (the optional "Registry HTTP"
// interface in the spec's external interfaces): GET /register?cluster=&name=&host=.
type HTTP struct {
	addr       string
	cluster    string
	httpClient *http.Client
}

// NewHTTP returns a Registry backed by the registry server at addr for the
// named cluster.
func NewHTTP(addr, cluster string) *HTTP {
	return &HTTP{addr: addr, cluster: cluster, httpClient: &http.Client{Timeout: 10 * time.Second}}
}

type httpResponse struct {
	Members     map[string]string `json:"members"`
	ClusterSize int               `json:"cluster_size"`
}

// Fetch implements Registry.
func (h *HTTP) Fetch(ctx context.Context, selfName, selfHost string) (Result, error) {
	u := fmt.Sprintf("%s/register?%s", h.addr, url.Values{
		"cluster": {h.cluster},
		"name":    {selfName},
		"host":    {selfHost},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Result{}, errors.Wrap(err, "building registry request")
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return Result{}, errors.Wrapf(xlineutil.ErrPlatformAPI, "registering with %s: %v", h.addr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, errors.Wrapf(xlineutil.ErrPlatformAPI, "registry returned status %d", resp.StatusCode)
	}

	var r httpResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Result{}, errors.Wrap(err, "decoding registry response")
	}
	return Result{Members: r.Members, TargetSize: r.ClusterSize}, nil
}

// Server is the in-memory HTTP server side of the registry protocol,
// intended for small test clusters and for the "registry" CLI variant that
// is not derived from the platform's stateful workload. Entries expire by
// TTL on read, mirroring the registry record invariant in §3.
type Server struct {
	ttl        time.Duration
	targetSize int

	mu      sync.Mutex
	records map[string]map[string]record // cluster -> name -> record
}

type record struct {
	host     string
	lastSeen time.Time
}

// NewServer returns a registry Server expecting targetSize members per
// cluster, expiring entries not refreshed within ttl.
func NewServer(targetSize int, ttl time.Duration) *Server {
	return &Server{ttl: ttl, targetSize: targetSize, records: make(map[string]map[string]record)}
}

func (s *Server) register(cluster, name, host string) httpResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	cl, ok := s.records[cluster]
	if !ok {
		cl = make(map[string]record)
		s.records[cluster] = cl
	}
	cl[name] = record{host: host, lastSeen: now}

	// Prune TTL-expired entries on read, as the registry record invariant requires.
	members := make(map[string]string, len(cl))
	for n, r := range cl {
		if now.Sub(r.lastSeen) > s.ttl {
			delete(cl, n)
			continue
		}
		members[n] = r.host
	}
	return httpResponse{Members: members, ClusterSize: s.targetSize}
}

// ServeHTTP implements http.Handler for GET /register.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	resp := s.register(q.Get("cluster"), q.Get("name"), q.Get("host"))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
