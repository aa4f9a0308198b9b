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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalNameRoundTrip(t *testing.T) {
	m := Metadata{Name: "c-0", Revision: 1}
	name := CanonicalName(m)
	assert.Equal(t, "c-0.1.xlinebak", name)

	got, err := ParseName(name)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestParseNameRejectsNonCanonical(t *testing.T) {
	_, err := ParseName("c-0.1.tmp")
	assert.Error(t, err)
}

func TestFSProviderSaveLoadLatestPurge(t *testing.T) {
	dir := t.TempDir()
	p := NewFSProvider(dir)
	ctx := context.Background()

	_, found, err := p.Latest(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, p.Save(ctx, Metadata{Name: "c-0", Revision: 1}, strings.NewReader("snapshot-1")))
	require.NoError(t, p.Save(ctx, Metadata{Name: "c-0", Revision: 3}, strings.NewReader("snapshot-3")))
	require.NoError(t, p.Save(ctx, Metadata{Name: "c-0", Revision: 2}, strings.NewReader("snapshot-2")))

	latest, found, err := p.Latest(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), latest.Revision)

	path, err := p.Load(ctx, Metadata{Name: "c-0", Revision: 2})
	require.NoError(t, err)
	assert.FileExists(t, path)

	require.NoError(t, p.Purge(ctx, time.Hour))
	latest, found, err = p.Latest(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(3), latest.Revision, "purge with a long TTL must not remove fresh snapshots")
}

func TestFSProviderSaveRejectsEmptyStream(t *testing.T) {
	p := NewFSProvider(t.TempDir())
	err := p.Save(context.Background(), Metadata{Name: "c-0", Revision: 1}, strings.NewReader(""))
	require.Error(t, err)
	_, found, latestErr := p.Latest(context.Background())
	require.NoError(t, latestErr)
	assert.False(t, found, "a truncated save must not become visible")
}
