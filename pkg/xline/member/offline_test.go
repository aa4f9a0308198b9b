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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func writeKV(t *testing.T, dataDir string, keys ...int64) {
	t.Helper()
	db, err := bolt.Open(filepath.Join(dataDir, offlineDBFile), 0o600, nil)
	require.NoError(t, err)
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(kvTable))
		if err != nil {
			return err
		}
		for _, rev := range keys {
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, uint64(rev))
			if err := b.Put(key, []byte("v")); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRevisionOfflineEmptyTableDefaultsToOne(t *testing.T) {
	dir := t.TempDir()
	writeKV(t, dir)

	rev, err := revisionOffline(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev)
}

func TestRevisionOfflineReturnsLastKey(t *testing.T) {
	dir := t.TempDir()
	writeKV(t, dir, 3, 7, 12)

	rev, err := revisionOffline(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(12), rev)
}
