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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// BackendKind selects how the sidecar drives the managed-service process.
type BackendKind string

const (
	// BackendLocal execs the managed-service binary directly in the
	// sidecar's own process namespace.
	BackendLocal BackendKind = "local"
	// BackendInContainer execs into a named container of a named pod via
	// the platform API, for split sidecar/server container layouts.
	BackendInContainer BackendKind = "in-container"
)

// BackendSpec is the parsed form of --backend.
type BackendSpec struct {
	Kind      BackendKind
	Pod       string
	Container string
	Namespace string
}

// ParseBackend parses "local" or
// "in-container,pod=<p>,container=<c>,namespace=<n>".
func ParseBackend(s string) (BackendSpec, error) {
	parts := strings.Split(s, ",")
	switch parts[0] {
	case string(BackendLocal):
		return BackendSpec{Kind: BackendLocal}, nil
	case string(BackendInContainer):
		spec := BackendSpec{Kind: BackendInContainer}
		fields, err := parseKV(parts[1:])
		if err != nil {
			return BackendSpec{}, errors.Wrap(err, "--backend")
		}
		spec.Pod, spec.Container, spec.Namespace = fields["pod"], fields["container"], fields["namespace"]
		if spec.Pod == "" || spec.Container == "" || spec.Namespace == "" {
			return BackendSpec{}, errors.New("--backend=in-container requires pod=, container= and namespace=")
		}
		return spec, nil
	default:
		return BackendSpec{}, errors.Errorf("--backend: unknown kind %q", parts[0])
	}
}

// BackupKind selects where the sidecar's backup provider stores snapshots.
type BackupKind string

const (
	// BackupS3 stores snapshots in an S3-compatible bucket.
	BackupS3 BackupKind = "s3"
	// BackupPV stores snapshots on a mounted volume path.
	BackupPV BackupKind = "pv"
)

// BackupSpec is the parsed form of --backup.
type BackupSpec struct {
	Kind   BackupKind
	Bucket string
	Path   string
}

// ParseBackup parses "s3:<bucket>" or "pv:/<path>".
func ParseBackup(s string) (BackupSpec, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return BackupSpec{}, errors.Errorf("--backup: expected <kind>:<value>, got %q", s)
	}
	switch BackupKind(kind) {
	case BackupS3:
		if rest == "" {
			return BackupSpec{}, errors.New("--backup=s3: requires a bucket name")
		}
		return BackupSpec{Kind: BackupS3, Bucket: rest}, nil
	case BackupPV:
		if rest == "" {
			return BackupSpec{}, errors.New("--backup=pv: requires a path")
		}
		return BackupSpec{Kind: BackupPV, Path: rest}, nil
	default:
		return BackupSpec{}, errors.Errorf("--backup: unknown kind %q", kind)
	}
}

// RegistryKind selects how the sidecar discovers peers.
type RegistryKind string

const (
	// RegistrySTS derives peers from a StatefulSet's replica count and a
	// headless Service's DNS names.
	RegistrySTS RegistryKind = "sts"
	// RegistryHTTP derives peers from a rendezvous HTTP server.
	RegistryHTTP RegistryKind = "http"
)

// RegistrySpec is the parsed form of --registry.
type RegistrySpec struct {
	Kind        RegistryKind
	StatefulSet string
	Namespace   string
	Addr        string
}

// ParseRegistry parses "sts:<name>:<namespace>" or "http:<addr>".
func ParseRegistry(s string) (RegistrySpec, error) {
	kind, rest, ok := strings.Cut(s, ":")
	if !ok {
		return RegistrySpec{}, errors.Errorf("--registry: expected <kind>:<value>, got %q", s)
	}
	switch RegistryKind(kind) {
	case RegistrySTS:
		name, ns, ok := strings.Cut(rest, ":")
		if !ok || name == "" || ns == "" {
			return RegistrySpec{}, errors.New("--registry=sts: expected sts:<name>:<namespace>")
		}
		return RegistrySpec{Kind: RegistrySTS, StatefulSet: name, Namespace: ns}, nil
	case RegistryHTTP:
		if rest == "" {
			return RegistrySpec{}, errors.New("--registry=http: requires an address")
		}
		return RegistrySpec{Kind: RegistryHTTP, Addr: rest}, nil
	default:
		return RegistrySpec{}, errors.Errorf("--registry: unknown kind %q", kind)
	}
}

// ParseInitMembers parses "name1=host1,name2=host2,...".
func ParseInitMembers(s string) (map[string]string, error) {
	fields, err := parseKV(strings.Split(s, ","))
	if err != nil {
		return nil, errors.Wrap(err, "--init-members")
	}
	if len(fields) == 0 {
		return nil, errors.New("--init-members: at least one member is required")
	}
	return fields, nil
}

func parseKV(parts []string) (map[string]string, error) {
	out := make(map[string]string, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" || v == "" {
			return nil, errors.Errorf("expected key=value, got %q", p)
		}
		out[k] = v
	}
	return out, nil
}

// ParsePort validates a CLI port flag value.
func ParsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil || p <= 0 || p > 65535 {
		return 0, errors.Errorf("invalid port %q", s)
	}
	return p, nil
}
