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

package member

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Config is the runtime member configuration held by each sidecar: its own
// identity, the cluster it belongs to, and the bootstrap member set.
type Config struct {
	SelfName    string
	ClusterName string
	InitMembers map[string]string // name -> bare host, no port
	ManagedPort int
	SidecarPort int
}

// NewConfig validates and returns a Config. SelfName must appear in
// initMembers.
func NewConfig(selfName, clusterName string, initMembers map[string]string, managedPort, sidecarPort int) (Config, error) {
	if _, ok := initMembers[selfName]; !ok {
		return Config{}, errors.Errorf("self_name %q not present in init_members", selfName)
	}
	return Config{
		SelfName:    selfName,
		ClusterName: clusterName,
		InitMembers: initMembers,
		ManagedPort: managedPort,
		SidecarPort: sidecarPort,
	}, nil
}

// SidecarMembers returns each member's host with the sidecar port appended.
func (c Config) SidecarMembers() map[string]string {
	return withPort(c.InitMembers, c.SidecarPort)
}

// ManagedMembers returns each member's host with the managed-service port
// appended.
func (c Config) ManagedMembers() map[string]string {
	return withPort(c.InitMembers, c.ManagedPort)
}

func withPort(hosts map[string]string, port int) map[string]string {
	out := make(map[string]string, len(hosts))
	for name, host := range hosts {
		out[name] = fmt.Sprintf("%s:%d", host, port)
	}
	return out
}

// sortedAddrs returns the map's values sorted, for deterministic iteration
// where callers need a stable connect order.
func sortedAddrs(members map[string]string) []string {
	addrs := make([]string, 0, len(members))
	for _, addr := range members {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// ParseHostPort splits addrs of the form "name=host,..." into a name -> host
// map; the text after '=' is kept as is. An empty spec yields an empty map.
func ParseHostPort(spec string) (map[string]string, error) {
	out := make(map[string]string)
	if spec == "" {
		return out, nil
	}
	for _, pair := range strings.Split(spec, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, errors.Errorf("malformed member entry %q, expected name=host", pair)
		}
		out[k] = v
	}
	return out, nil
}
