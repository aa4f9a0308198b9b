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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/xline-kv/xline-operator/pkg/xline/member"
	"github.com/xline-kv/xline-operator/pkg/xline/registry"
)

// DefaultHealthCheckTimeout bounds the total deadline for one round of
// peer /health probes.
const DefaultHealthCheckTimeout = 10 * time.Second

// HeartbeatStatus is the JSON body POSTed to the operator's monitor
// endpoint.
type HeartbeatStatus struct {
	ClusterName string    `json:"cluster_name"`
	Name        string    `json:"name"`
	Timestamp   time.Time `json:"timestamp"`
	Reachable   []string  `json:"reachable"`
}

// HeartbeatReporter periodically probes peer reachability and posts a
// HeartbeatStatus to the operator.
type HeartbeatReporter struct {
	cfg        member.Config
	reg        registry.Registry
	monitorURL string
	httpClient *http.Client
	logger     log.Logger
	interval   time.Duration
}

// NewHeartbeatReporter builds a reporter posting to monitorURL every
// interval.
func NewHeartbeatReporter(cfg member.Config, reg registry.Registry, monitorURL string, interval time.Duration, logger log.Logger) *HeartbeatReporter {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &HeartbeatReporter{
		cfg:        cfg,
		reg:        reg,
		monitorURL: monitorURL,
		httpClient: &http.Client{Timeout: DefaultHealthCheckTimeout},
		logger:     logger,
		interval:   interval,
	}
}

// Run blocks until ctx is cancelled, ticking at a fixed interval. Ticks
// missed while a tick runs long are dropped (at most one is pending), never
// back-filled.
func (h *HeartbeatReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := h.tick(ctx); err != nil {
				level.Warn(h.logger).Log("msg", "heartbeat tick failed", "err", err)
			}
		}
	}
}

func (h *HeartbeatReporter) tick(ctx context.Context) error {
	selfHost := h.cfg.InitMembers[h.cfg.SelfName]
	res, err := h.reg.Fetch(ctx, h.cfg.SelfName, selfHost)
	if err != nil {
		return err
	}
	sidecarAddrs := withPort(res.Members, h.cfg.SidecarPort)

	probeCtx, cancel := context.WithTimeout(ctx, DefaultHealthCheckTimeout)
	defer cancel()

	reachable := []string{h.cfg.SelfName}
	for name, addr := range sidecarAddrs {
		if name == h.cfg.SelfName {
			continue
		}
		if h.probeHealth(probeCtx, addr) {
			reachable = append(reachable, name)
		}
	}

	status := HeartbeatStatus{
		ClusterName: h.cfg.ClusterName,
		Name:        h.cfg.SelfName,
		Timestamp:   time.Now(),
		Reachable:   reachable,
	}
	return h.post(ctx, status)
}

func (h *HeartbeatReporter) probeHealth(ctx context.Context, addr string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (h *HeartbeatReporter) post(ctx context.Context, status HeartbeatStatus) error {
	body, err := json.Marshal(status)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.monitorURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
