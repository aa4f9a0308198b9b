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
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xline-kv/xline-operator/pkg/xline/backup"
	"github.com/xline-kv/xline-operator/pkg/xline/process"
	"github.com/xline-kv/xline-operator/pkg/xline/xclient"
)

type fakeProcess struct {
	running bool
}

func (p *fakeProcess) Start(context.Context, map[string]string) error {
	p.running = true
	return nil
}

func (p *fakeProcess) Kill(context.Context) error {
	p.running = false
	return nil
}

func (p *fakeProcess) Running() bool { return p.running }

var _ process.Handle = (*fakeProcess)(nil)

func newTestHandle(t *testing.T, name string, fake *xclient.Fake) (*Handle, string) {
	t.Helper()
	dataDir := t.TempDir()
	h := Open(name, "127.0.0.1:2379", dataDir, nil, &fakeProcess{}, &xclient.FakeDialer{Client: fake}, nil)
	h.reachable = func(context.Context, string, time.Duration) bool { return false }
	return h, dataDir
}

func TestStartSeedsWhenNoPeerReachable(t *testing.T) {
	fake := xclient.NewFake(nil)
	h, _ := newTestHandle(t, "c-0", fake)

	members := map[string]string{"c-0": "10.0.0.1:2379", "c-1": "10.0.0.2:2379"}
	require.NoError(t, h.Start(context.Background(), members))

	require.Len(t, fake.Members, 1)
	assert.Equal(t, uint64(1), h.serverID)
}

func TestStartJoinsWhenPeerReachable(t *testing.T) {
	fake := xclient.NewFake(nil)
	h, _ := newTestHandle(t, "c-1", fake)
	h.reachable = func(_ context.Context, addr string, _ time.Duration) bool { return addr == "10.0.0.1:2379" }

	members := map[string]string{"c-0": "10.0.0.1:2379", "c-1": "10.0.0.2:2379"}
	require.NoError(t, h.Start(context.Background(), members))
	require.Len(t, fake.Members, 1)
	assert.Equal(t, []string{"10.0.0.2:2379"}, fake.Members[0].PeerURLs)
}

func TestStartUpdatesExistingMember(t *testing.T) {
	fake := xclient.NewFake(nil)
	fake.Members = []xclient.Member{{ID: 7, Name: "c-0", PeerURLs: []string{"10.0.0.1:2379"}}}
	h, _ := newTestHandle(t, "c-0", fake)

	members := map[string]string{"c-0": "10.0.0.9:2379"}
	require.NoError(t, h.Start(context.Background(), members))
	assert.Equal(t, uint64(7), h.serverID)
	assert.Equal(t, []string{"10.0.0.9:2379"}, fake.Members[0].PeerURLs)
}

func TestIsHealthyTrueWhenProbeSucceeds(t *testing.T) {
	fake := xclient.NewFake(nil)
	h, _ := newTestHandle(t, "c-0", fake)
	require.NoError(t, h.Start(context.Background(), map[string]string{"c-0": "10.0.0.1:2379"}))

	assert.True(t, h.IsHealthy(context.Background()))
}

func TestStopRemovesMemberWhenHealthy(t *testing.T) {
	fake := xclient.NewFake(nil)
	h, _ := newTestHandle(t, "c-0", fake)
	require.NoError(t, h.Start(context.Background(), map[string]string{"c-0": "10.0.0.1:2379"}))
	require.Len(t, fake.Members, 1)

	require.NoError(t, h.Stop(context.Background()))
	assert.Len(t, fake.Members, 0)
}

func TestBackupSkipsWhenRemoteNewer(t *testing.T) {
	fake := xclient.NewFake(nil)
	fake.RevisionVal = 5
	bp := backup.NewFSProvider(t.TempDir())
	require.NoError(t, bp.Save(context.Background(), backup.Metadata{Name: "c-0", Revision: 10}, strings.NewReader("data")))

	h, _ := newTestHandle(t, "c-0", fake)
	h.backup = bp
	require.NoError(t, h.Start(context.Background(), map[string]string{"c-0": "10.0.0.1:2379"}))

	require.NoError(t, h.Backup(context.Background()))

	latest, found, err := bp.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(10), latest.Revision)
}

func TestBackupSavesWhenLocalNewer(t *testing.T) {
	fake := xclient.NewFake(nil)
	fake.RevisionVal = 42
	fake.SnapshotData = []byte("snapshot-bytes")
	bp := backup.NewFSProvider(t.TempDir())

	h, _ := newTestHandle(t, "c-0", fake)
	h.backup = bp
	require.NoError(t, h.Start(context.Background(), map[string]string{"c-0": "10.0.0.1:2379"}))

	require.NoError(t, h.Backup(context.Background()))

	latest, found, err := bp.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(42), latest.Revision)
}

func TestCleanupRemovesDataDir(t *testing.T) {
	fake := xclient.NewFake(nil)
	h, dataDir := newTestHandle(t, "c-0", fake)
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "marker"), []byte("x"), 0o600))

	require.NoError(t, h.Cleanup())
	_, err := os.Stat(dataDir)
	assert.True(t, os.IsNotExist(err))
}
