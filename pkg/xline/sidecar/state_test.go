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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeederPicksHighestRevision(t *testing.T) {
	peers := map[string]Payload{
		"c-0": {State: StateOK, Revision: 5},
		"c-1": {State: StateOK, Revision: 9},
		"c-2": {State: StateOK, Revision: 3},
	}
	assert.Equal(t, "c-1", Seeder(peers))
}

func TestSeederTiesBreakByName(t *testing.T) {
	peers := map[string]Payload{
		"c-2": {State: StateOK, Revision: 5},
		"c-0": {State: StateOK, Revision: 5},
		"c-1": {State: StateOK, Revision: 5},
	}
	assert.Equal(t, "c-0", Seeder(peers))
}

func TestBuildSnapshotCountsStates(t *testing.T) {
	peers := map[string]Payload{
		"c-0": {State: StateOK},
		"c-1": {State: StateOK},
		"c-2": {State: StatePending},
	}
	snap := BuildSnapshot(peers)
	assert.Equal(t, 2, snap.States[StateOK])
	assert.Equal(t, 1, snap.States[StatePending])
}

func TestMajority(t *testing.T) {
	assert.Equal(t, 2, Majority(3))
	assert.Equal(t, 3, Majority(5))
	assert.Equal(t, 1, Majority(1))
}

func TestPayloadStoreGetSet(t *testing.T) {
	s := &PayloadStore{}
	assert.Equal(t, Payload{}, s.Get())
	s.Set(Payload{State: StateOK, Revision: 4})
	assert.Equal(t, Payload{State: StateOK, Revision: 4}, s.Get())
}
