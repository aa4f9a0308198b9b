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

// Package registry implements membership rendezvous: each sidecar registers
// (cluster, name, host); callers fetch the full member map once the cluster
// reaches target size.
package registry

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// WaitDelay is the poll interval used by WaitFullFetch. Variable so tests
// can shorten it.
var WaitDelay = 5 * time.Second

// WaitThreshold is the maximum number of polls WaitFullFetch attempts.
const WaitThreshold = 60

// Result is the response to Fetch: the currently known member map and the
// cluster's target size.
type Result struct {
	Members    map[string]string
	TargetSize int
}

// Registry discovers the other members of a cluster.
type Registry interface {
	// Fetch registers (selfName, selfHost) and returns the currently known
	// members plus the target cluster size.
	Fetch(ctx context.Context, selfName, selfHost string) (Result, error)
}

// WaitFullFetch polls Fetch every WaitDelay until the member map reaches the
// target size or WaitThreshold attempts elapse, in which case it returns
// xlineutil.ErrFullConfigTimeout.
func WaitFullFetch(ctx context.Context, logger log.Logger, r Registry, selfName, selfHost string) (Result, error) {
	var last Result
	for attempt := 0; attempt < WaitThreshold; attempt++ {
		res, err := r.Fetch(ctx, selfName, selfHost)
		if err != nil {
			level.Warn(logger).Log("msg", "registry fetch failed, retrying", "attempt", attempt, "err", err)
		} else {
			last = res
			if res.TargetSize > 0 && len(res.Members) >= res.TargetSize {
				return res, nil
			}
		}

		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		case <-time.After(WaitDelay):
		}
	}
	return Result{}, errors.Wrapf(xlineutil.ErrFullConfigTimeout, "waiting for %d members, have %d", last.TargetSize, len(last.Members))
}
