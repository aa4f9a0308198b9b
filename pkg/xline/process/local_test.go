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

package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStartKillIdempotent(t *testing.T) {
	ctx := context.Background()
	l := NewLocal("sleep", "5")

	require.NoError(t, l.Kill(ctx)) // kill before start is a no-op
	assert.False(t, l.Running())

	require.NoError(t, l.Start(ctx, map[string]string{"c-0": "127.0.0.1:1"}))
	assert.True(t, l.Running())

	// Starting again while already running must stop and restart, not error.
	require.NoError(t, l.Start(ctx, map[string]string{"c-0": "127.0.0.1:1", "c-1": "127.0.0.1:2"}))
	assert.True(t, l.Running())

	require.NoError(t, l.Kill(ctx))
	assert.False(t, l.Running())
	require.NoError(t, l.Kill(ctx))
}

func TestMembersArgDeterministic(t *testing.T) {
	a := membersArg(map[string]string{"b": "h2", "a": "h1"})
	b := membersArg(map[string]string{"a": "h1", "b": "h2"})
	assert.Equal(t, a, b)
	assert.Equal(t, "a=h1,b=h2", a)
}

func TestLocalKillWaitsForExit(t *testing.T) {
	ctx := context.Background()
	l := NewLocal("sleep", "30")
	require.NoError(t, l.Start(ctx, nil))
	done := make(chan struct{})
	go func() {
		_ = l.Kill(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Kill did not return in time")
	}
}
