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
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/xline-kv/xline-operator/pkg/xline/member"
)

// MembershipOp is the operation requested by a peer-initiated POST
// /membership. The server decodes it but does not act on it; see
// handleMembership.
type MembershipOp string

const (
	// MembershipRemove requests removal of a named member.
	MembershipRemove MembershipOp = "Remove"
	// MembershipAdd requests adding a member at an address.
	MembershipAdd MembershipOp = "Add"
)

// MembershipRequest is the POST /membership request body.
type MembershipRequest struct {
	Name string       `json:"name"`
	Op   MembershipOp `json:"op"`
	Addr string       `json:"addr,omitempty"`
}

// Server is the sidecar's fixed HTTP surface: /health, /backup, /state,
// /membership.
type Server struct {
	mh        *member.Handle
	payload   *PayloadStore
	dataDir   string
	backupDir string // empty if no backup storage configured
	logger    log.Logger
}

// NewServer returns a Server. backupDir may be empty when no backup
// storage is configured.
func NewServer(mh *member.Handle, payload *PayloadStore, dataDir, backupDir string, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Server{mh: mh, payload: payload, dataDir: dataDir, backupDir: backupDir, logger: logger}
}

// Mux returns the server's routes registered on a fresh ServeMux.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/backup", s.handleBackup)
	mux.HandleFunc("/state", s.handleState)
	mux.HandleFunc("/membership", s.handleMembership)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !writableReadable(s.dataDir) || (s.backupDir != "" && !writableReadable(s.backupDir)) {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func writableReadable(dir string) bool {
	probe := filepath.Join(dir, ".health-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return false
	}
	defer os.Remove(probe)
	_, err := os.ReadFile(probe)
	return err == nil
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if err := s.mh.Backup(r.Context()); err != nil {
		level.Warn(s.logger).Log("msg", "backup trigger failed", "err", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.payload.Get())
}

// handleMembership is a reserved hook for peer-initiated membership
// changes. It is a deliberate no-op: it decodes the body, ignores it, and
// always returns 200.
func (s *Server) handleMembership(w http.ResponseWriter, r *http.Request) {
	var req MembershipRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	w.WriteHeader(http.StatusOK)
}
