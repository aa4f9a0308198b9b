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

// Package backup implements the Provider contract for named, revisioned
// xline snapshots: save, list-latest, load, and TTL-purge.
package backup

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// Suffix is the fixed literal terminating every canonical snapshot filename.
const Suffix = "xlinebak"

// Metadata identifies a single snapshot by the member that produced it and
// the store revision it was taken at.
type Metadata struct {
	Name     string
	Revision int64
}

var nameRE = regexp.MustCompile(`^(.+)\.(\d+)\.` + regexp.QuoteMeta(Suffix) + `$`)

// CanonicalName renders the on-wire filename for m: "<name>.<revision>.<suffix>".
func CanonicalName(m Metadata) string {
	return fmt.Sprintf("%s.%d.%s", m.Name, m.Revision, Suffix)
}

// ParseName is the inverse of CanonicalName.
func ParseName(filename string) (Metadata, error) {
	m := nameRE.FindStringSubmatch(filename)
	if m == nil {
		return Metadata{}, errors.Errorf("%q is not a canonical snapshot filename", filename)
	}
	rev, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Metadata{}, errors.Wrapf(err, "parsing revision in %q", filename)
	}
	return Metadata{Name: m[1], Revision: rev}, nil
}

// Provider is the abstract store for named, revisioned snapshots. It is
// deliberately narrow: callers never see bucket or volume mechanics,
// only the stream-save / path-load / purge operations the sidecar needs.
//
// Implementations must return an error wrapping xlineutil.ErrStoreUnavailable
// for I/O failures. FSProvider.Save returns xlineutil.ErrTruncated when the
// input stream is empty; no provider checks the stream against an expected
// length.
type Provider interface {
	// Latest returns the metadata of the snapshot with the highest revision
	// among files matching the canonical naming scheme, or (Metadata{}, false, nil)
	// if the store holds none.
	Latest(ctx context.Context) (Metadata, bool, error)
	// Save atomically persists r under the canonical filename for meta. It
	// must not leave a partial file visible to Latest or Load on failure.
	Save(ctx context.Context, meta Metadata, r io.Reader) error
	// Load returns a local filesystem path from which the caller may read
	// the named snapshot.
	Load(ctx context.Context, meta Metadata) (string, error)
	// Purge deletes snapshots whose modification time is older than now-ttl.
	// Purge never removes a save that is still in progress.
	Purge(ctx context.Context, ttl time.Duration) error
}

func storeUnavailable(err error, format string, args ...any) error {
	return errors.Wrapf(fmt.Errorf("%w: %w", xlineutil.ErrStoreUnavailable, err), format, args...)
}
