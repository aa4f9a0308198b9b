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

package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// FSProvider stores snapshots as plain files in a directory. Two concurrent
// Save calls under distinct Metadata never interfere because each writes to
// its own temp file before renaming into place; purge never removes a save
// in progress because the temp file does not match the canonical naming
// scheme Purge scans for.
type FSProvider struct {
	dir string
}

// NewFSProvider returns a Provider rooted at dir. The directory must already
// exist; callers typically point this at the sidecar's reserved backup path.
func NewFSProvider(dir string) *FSProvider {
	return &FSProvider{dir: dir}
}

func (p *FSProvider) entries() ([]os.DirEntry, error) {
	ents, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, storeUnavailable(err, "reading backup directory %s", p.dir)
	}
	return ents, nil
}

// Latest implements Provider.
func (p *FSProvider) Latest(_ context.Context) (Metadata, bool, error) {
	ents, err := p.entries()
	if err != nil {
		return Metadata{}, false, err
	}

	var (
		best  Metadata
		found bool
	)
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		m, err := ParseName(e.Name())
		if err != nil {
			continue // not a canonical snapshot file, ignore
		}
		if !found || m.Revision > best.Revision {
			best, found = m, true
		}
	}
	return best, found, nil
}

// Save implements Provider.
func (p *FSProvider) Save(_ context.Context, meta Metadata, r io.Reader) error {
	final := filepath.Join(p.dir, CanonicalName(meta))
	tmp, err := os.CreateTemp(p.dir, ".tmp-"+CanonicalName(meta)+"-*")
	if err != nil {
		return storeUnavailable(err, "creating temp file for %v", meta)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	n, err := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if err != nil {
		return storeUnavailable(err, "streaming snapshot for %v", meta)
	}
	if closeErr != nil {
		return storeUnavailable(closeErr, "closing snapshot temp file for %v", meta)
	}
	if n == 0 {
		return errors.Wrapf(xlineutil.ErrTruncated, "saving %v: empty stream", meta)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return storeUnavailable(err, "renaming snapshot into place for %v", meta)
	}
	return nil
}

// Load implements Provider.
func (p *FSProvider) Load(_ context.Context, meta Metadata) (string, error) {
	path := filepath.Join(p.dir, CanonicalName(meta))
	if _, err := os.Stat(path); err != nil {
		return "", storeUnavailable(err, "locating snapshot %v", meta)
	}
	return path, nil
}

// Purge implements Provider.
func (p *FSProvider) Purge(_ context.Context, ttl time.Duration) error {
	ents, err := p.entries()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-ttl)

	var errs []error
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if _, err := ParseName(e.Name()); err != nil {
			continue // never touch files that aren't our own canonical snapshots
		}
		info, err := e.Info()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(p.dir, e.Name())); err != nil && !os.IsNotExist(err) {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return storeUnavailable(errors.Errorf("%d errors, first: %v", len(errs), errs[0]), "purging %s", p.dir)
	}
	return nil
}
