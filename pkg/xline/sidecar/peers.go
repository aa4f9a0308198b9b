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
	"net/http"
	"sync"
	"time"
)

// PeerClient fetches /state from peer sidecars to build a Snapshot.
type PeerClient struct {
	httpClient *http.Client
}

// NewPeerClient returns a PeerClient bounding each probe round to timeout.
func NewPeerClient(timeout time.Duration) *PeerClient {
	return &PeerClient{httpClient: &http.Client{Timeout: timeout}}
}

// FetchAll probes GET /state on every sidecarAddr (name -> "host:port"),
// including self via selfPayload, and returns whatever answered.
func (c *PeerClient) FetchAll(ctx context.Context, sidecarAddrs map[string]string, selfName string, selfPayload Payload) map[string]Payload {
	out := make(map[string]Payload, len(sidecarAddrs))
	var mu sync.Mutex
	out[selfName] = selfPayload

	var wg sync.WaitGroup
	for name, addr := range sidecarAddrs {
		if name == selfName {
			continue
		}
		name, addr := name, addr
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.fetchOne(ctx, addr)
			if err != nil {
				return
			}
			mu.Lock()
			out[name] = p
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func (c *PeerClient) fetchOne(ctx context.Context, addr string) (Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/state", nil)
	if err != nil {
		return Payload{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()

	var p Payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Payload{}, err
	}
	return p, nil
}
