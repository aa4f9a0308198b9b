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

// Package xlineutil holds error classes and small helpers shared by both
// the operator and the sidecar.
package xlineutil

import "errors"

// Error classes from the error handling design. Callers compare with
// errors.Is; wrapped occurrences keep their causal chain via
// github.com/pkg/errors.Wrap.
var (
	// ErrSchemaConflict means a CRD install or migration was rejected.
	ErrSchemaConflict = errors.New("schema conflict")
	// ErrPlatformAPI means a transient platform API error occurred; retry.
	ErrPlatformAPI = errors.New("platform api error")
	// ErrNotFound means a required spec field is missing.
	ErrNotFound = errors.New("not found")
	// ErrCannotMount means materialization was rejected due to a reserved mount path collision.
	ErrCannotMount = errors.New("cannot mount")
	// ErrInvalidVolumeName means materialization was rejected due to a reserved volume name collision.
	ErrInvalidVolumeName = errors.New("invalid volume name")
	// ErrProcessFailure means a process handle start or kill failed.
	ErrProcessFailure = errors.New("process failure")
	// ErrStoreUnavailable means the backup provider's underlying store failed.
	ErrStoreUnavailable = errors.New("backup store unavailable")
	// ErrTruncated means a backup save received an empty snapshot stream.
	ErrTruncated = errors.New("backup stream truncated")
	// ErrFullConfigTimeout means the registry wait for a full member set was exhausted.
	ErrFullConfigTimeout = errors.New("timed out waiting for full member configuration")
	// ErrClockSkew means the supervisor suppressed action due to gross clock skew.
	ErrClockSkew = errors.New("clock skew suppressed action")
	// ErrQuorumLoss is diagnostic only: it marks a reconcile tick that observed quorum loss.
	ErrQuorumLoss = errors.New("quorum loss")
	// ErrValidationFailed means a cluster spec failed admission validation.
	ErrValidationFailed = errors.New("validation failed")
)

// Reason returns the low-cardinality error-class label used by the
// operator_reconcile_failed_count{reason} and sidecar_reconcile_* metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSchemaConflict):
		return "schema_conflict"
	case errors.Is(err, ErrPlatformAPI):
		return "platform_api"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrCannotMount):
		return "cannot_mount"
	case errors.Is(err, ErrInvalidVolumeName):
		return "invalid_volume_name"
	case errors.Is(err, ErrProcessFailure):
		return "process_failure"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrTruncated):
		return "truncated"
	case errors.Is(err, ErrFullConfigTimeout):
		return "full_config_timeout"
	case errors.Is(err, ErrClockSkew):
		return "clock_skew"
	case errors.Is(err, ErrQuorumLoss):
		return "quorum_loss"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	default:
		return "unknown"
	}
}
