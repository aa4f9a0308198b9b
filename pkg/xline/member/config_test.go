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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigRequiresSelfInInitMembers(t *testing.T) {
	_, err := NewConfig("c-0", "demo", map[string]string{"c-1": "10.0.0.2"}, 2379, 2380)
	require.Error(t, err)
}

func TestConfigDerivedViews(t *testing.T) {
	cfg, err := NewConfig("c-0", "demo", map[string]string{"c-0": "10.0.0.1", "c-1": "10.0.0.2"}, 2379, 2380)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1:2379", cfg.ManagedMembers()["c-0"])
	assert.Equal(t, "10.0.0.1:2380", cfg.SidecarMembers()["c-0"])
	assert.Equal(t, "10.0.0.2:2379", cfg.ManagedMembers()["c-1"])
}

func TestParseHostPort(t *testing.T) {
	m, err := ParseHostPort("c-0=10.0.0.1,c-1=10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c-0": "10.0.0.1", "c-1": "10.0.0.2"}, m)

	_, err = ParseHostPort("malformed")
	require.Error(t, err)

	m, err = ParseHostPort("")
	require.NoError(t, err)
	assert.Empty(t, m)
}
