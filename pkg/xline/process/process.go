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

// Package process provides the abstract capability to start and kill the
// xline server process, with a local-exec and an in-container-exec variant.
package process

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// Handle starts and kills the xline process seeded with a given member
// list. Both operations must be idempotent: Start when already started
// stops and restarts; Kill when already killed is a no-op.
type Handle interface {
	// Start launches xline with the given name->host:port member map.
	Start(ctx context.Context, members map[string]string) error
	// Kill terminates the process. A no-op if not running.
	Kill(ctx context.Context) error
	// Running reports whether the process is currently alive, independent
	// of whether it is answering RPCs (that is member.Handle.IsRunning).
	Running() bool
}

func processFailure(err error, format string, args ...any) error {
	return errors.Wrapf(fmt.Errorf("%w: %w", xlineutil.ErrProcessFailure, err), format, args...)
}
