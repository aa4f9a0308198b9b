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

package v1alpha1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCreate(t *testing.T) {
	cases := []struct {
		name        string
		cluster     XlineCluster
		errContains string
	}{
		{
			name: "OK",
			cluster: XlineCluster{Spec: XlineClusterSpec{
				Size:      3,
				Container: ContainerSpec{Image: "xline:latest"},
			}},
		},
		{
			name: "OK with backup",
			cluster: XlineCluster{Spec: XlineClusterSpec{
				Size:      3,
				Container: ContainerSpec{Image: "xline:latest"},
				Backup: &BackupSpec{
					Cron:    "*/15 * * * *",
					Storage: BackupStorageSpec{S3: &S3BackupStorage{Bucket: "mybucket"}},
				},
			}},
		},
		{
			name: "size too small",
			cluster: XlineCluster{Spec: XlineClusterSpec{
				Size:      2,
				Container: ContainerSpec{Image: "xline:latest"},
			}},
			errContains: "size",
		},
		{
			name: "bad cron",
			cluster: XlineCluster{Spec: XlineClusterSpec{
				Size:      3,
				Container: ContainerSpec{Image: "xline:latest"},
				Backup: &BackupSpec{
					Cron:    "1 day",
					Storage: BackupStorageSpec{S3: &S3BackupStorage{Bucket: "mybucket"}},
				},
			}},
			errContains: "backup.cron",
		},
		{
			name: "bad bucket",
			cluster: XlineCluster{Spec: XlineClusterSpec{
				Size:      3,
				Container: ContainerSpec{Image: "xline:latest"},
				Backup: &BackupSpec{
					Cron:    "*/15 * * * *",
					Storage: BackupStorageSpec{S3: &S3BackupStorage{Bucket: "&%$# /"}},
				},
			}},
			errContains: "backup.storage.s3.bucket",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cluster.ValidateCreate()
			if c.errContains == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), c.errContains)
			}
		})
	}
}

func TestValidateUpdateMatchesCreate(t *testing.T) {
	c := XlineCluster{Spec: XlineClusterSpec{Size: 1, Container: ContainerSpec{Image: "xline:latest"}}}
	assert.Error(t, c.ValidateUpdate(nil))
}

func TestValidateDeleteAlwaysOK(t *testing.T) {
	c := XlineCluster{}
	assert.NoError(t, c.ValidateDelete())
}
