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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xline-kv/xline-operator/pkg/xline/member"
	"github.com/xline-kv/xline-operator/pkg/xline/xclient"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	dataDir := t.TempDir()
	fake := xclient.NewFake(nil)
	mh := member.Open("c-0", "127.0.0.1:2379", dataDir, nil, noopProcess{}, &xclient.FakeDialer{Client: fake}, nil)
	payload := &PayloadStore{}
	payload.Set(Payload{State: StateOK, Revision: 3})
	s := NewServer(mh, payload, dataDir, "", nil)
	return s, httptest.NewServer(s.Mux())
}

type noopProcess struct{}

func (noopProcess) Start(context.Context, map[string]string) error { return nil }
func (noopProcess) Kill(context.Context) error                     { return nil }
func (noopProcess) Running() bool                                  { return true }

func TestHealthEndpointOKWhenDirsWritable(t *testing.T) {
	_, ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStateEndpointReturnsPayload(t *testing.T) {
	_, ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMembershipEndpointAlwaysReturnsOK(t *testing.T) {
	_, ts := newTestServer(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/membership", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
