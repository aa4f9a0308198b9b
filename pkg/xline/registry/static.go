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

package registry

import "context"

// Static returns a fixed, constructor-supplied member map. It is used by
// tests; the --registry flag has no static kind.
type Static struct {
	result Result
}

// NewStatic returns a Registry that always answers with result.
func NewStatic(result Result) *Static {
	return &Static{result: result}
}

// Fetch implements Registry.
func (s *Static) Fetch(_ context.Context, _, _ string) (Result, error) {
	return s.result, nil
}
