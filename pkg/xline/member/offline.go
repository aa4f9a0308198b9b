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
	"encoding/binary"
	"path/filepath"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// kvTable mirrors the managed service's on-disk key-value table name, so
// the offline revision reader can be pointed at a stopped process's own
// data directory.
const kvTable = "kv"

// offlineDBFile is the bbolt file name the managed service keeps its
// revisioned keyspace in.
const offlineDBFile = "xline.db"

// revisionOffline opens the local key-value table under dataDir and
// returns the revision encoded in the last key, or 1 if the table is
// empty. The caller must guarantee the managed-service process is
// stopped: reading a live bbolt file from another process is a race.
func revisionOffline(dataDir string) (int64, error) {
	db, err := bolt.Open(filepath.Join(dataDir, offlineDBFile), 0o600, &bolt.Options{ReadOnly: true})
	if err != nil {
		return 0, errors.Wrapf(xlineutil.ErrProcessFailure, "opening offline data dir %s: %v", dataDir, err)
	}
	defer db.Close()

	var revision int64 = 1
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(kvTable))
		if b == nil {
			return nil
		}
		k, _ := b.Cursor().Last()
		if k == nil {
			return nil
		}
		if len(k) < 8 {
			return errors.Errorf("malformed key in %s table: %x", kvTable, k)
		}
		revision = int64(binary.BigEndian.Uint64(k[len(k)-8:]))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return revision, nil
}
