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
	"regexp"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// cronParser accepts the restricted 5-field grammar (no seconds, no
// descriptors like @daily) that a scheduled backup job's spec.schedule uses.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// MinSize is the smallest cluster size the operator will accept. A
// quorum-store needs at least three members to tolerate one failure.
const MinSize = 3

// XlineCluster defines a desired distributed key-value store deployment.
// +genclient
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
// +kubebuilder:subresource:status
// +kubebuilder:subresource:scale:specpath=.spec.size,statuspath=.status.available
// +kubebuilder:printcolumn:name="Size",type=integer,JSONPath=`.spec.size`
// +kubebuilder:printcolumn:name="Available",type=integer,JSONPath=`.status.available`
// +kubebuilder:printcolumn:name="Backup Cron",type=string,JSONPath=`.spec.backup.cron`
// +kubebuilder:printcolumn:name="Age",type=date,JSONPath=`.metadata.creationTimestamp`
type XlineCluster struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   XlineClusterSpec   `json:"spec"`
	Status XlineClusterStatus `json:"status,omitempty"`
}

// XlineClusterList is a list of XlineClusters.
// +k8s:deepcopy-gen:interfaces=k8s.io/apimachinery/pkg/runtime.Object
type XlineClusterList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []XlineCluster `json:"items"`
}

// XlineClusterSpec is the desired state of a cluster.
type XlineClusterSpec struct {
	// Size is the number of cluster members. Must be at least MinSize so the
	// quorum store can tolerate a single failure.
	Size int32 `json:"size"`
	// Container describes the managed-service process image.
	Container ContainerSpec `json:"container"`
	// Affinity is forwarded verbatim onto the stateful workload's pod template.
	// +optional
	Affinity *corev1.Affinity `json:"affinity,omitempty"`
	// Data configures the volume backing the managed-service's data directory.
	// Falls back to an emptyDir when unset.
	// +optional
	Data *DataVolumeSpec `json:"data,omitempty"`
	// PVCs are additional volume claim templates forwarded verbatim.
	// +optional
	PVCs []corev1.PersistentVolumeClaim `json:"pvcs,omitempty"`
	// Backup configures scheduled snapshot backups. Omit to disable.
	// +optional
	Backup *BackupSpec `json:"backup,omitempty"`
}

// ContainerSpec is an opaque process-image descriptor for the managed-service
// container.
type ContainerSpec struct {
	Image        string                      `json:"image"`
	Ports        []corev1.ContainerPort      `json:"ports,omitempty"`
	Env          []corev1.EnvVar             `json:"env,omitempty"`
	VolumeMounts []corev1.VolumeMount        `json:"volumeMounts,omitempty"`
	Resources    corev1.ResourceRequirements `json:"resources,omitempty"`
}

// DataVolumeSpec selects the volume backing the reserved data path.
type DataVolumeSpec struct {
	// PVC requests a dedicated volume claim template for cluster data.
	// +optional
	PVC *corev1.PersistentVolumeClaimSpec `json:"pvc,omitempty"`
}

// BackupSpec configures scheduled snapshot backups.
type BackupSpec struct {
	// Cron is a restricted 5-field cron schedule.
	Cron string `json:"cron"`
	// Storage is a tagged union of backup destinations.
	Storage BackupStorageSpec `json:"storage"`
}

// BackupStorageSpec is a tagged union; exactly one field should be set.
type BackupStorageSpec struct {
	S3  *S3BackupStorage  `json:"s3,omitempty"`
	PVC *PVCBackupStorage `json:"pvc,omitempty"`
}

// S3BackupStorage names an S3-compatible bucket snapshots are streamed to.
type S3BackupStorage struct {
	Bucket string `json:"bucket"`
}

// PVCBackupStorage names a PersistentVolumeClaim mounted as the backup path.
type PVCBackupStorage struct {
	PVC string `json:"pvc"`
}

// XlineClusterStatus is the operator-maintained observed state of a cluster.
// Only the operator writes it: each reconcile recomputes available and the
// member map from the cluster's current pods, so both can shrink.
type XlineClusterStatus struct {
	// Available is the number of members currently reporting healthy, in [0, size].
	Available int32 `json:"available"`
	// Members maps member name to its platform-assigned address.
	// +optional
	Members map[string]string `json:"members,omitempty"`
}

// bucketPattern enforces DNS-label grammar for S3 bucket names.
var bucketPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidateCreate checks the spec's admission invariants. No webhook calls it;
// the operator's reconciler runs it before materializing a cluster.
func (c *XlineCluster) ValidateCreate() error {
	if c.Spec.Size < MinSize {
		return errors.Errorf("spec.size: must be at least %d, got %d", MinSize, c.Spec.Size)
	}
	if c.Spec.Backup != nil {
		if err := validateCron(c.Spec.Backup.Cron); err != nil {
			return errors.Wrap(err, "spec.backup.cron")
		}
		if s3 := c.Spec.Backup.Storage.S3; s3 != nil {
			if !bucketPattern.MatchString(s3.Bucket) {
				return errors.Errorf("spec.backup.storage.s3.bucket: %q is not a valid DNS label", s3.Bucket)
			}
		}
	}
	return nil
}

// ValidateUpdate re-runs creation validation; validity does not depend on
// the prior state.
func (c *XlineCluster) ValidateUpdate(runtime.Object) error {
	return c.ValidateCreate()
}

// ValidateDelete always allows deletion.
func (c *XlineCluster) ValidateDelete() error {
	return nil
}

func validateCron(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return errors.Wrapf(err, "%q is not a valid 5-field cron schedule", expr)
	}
	return nil
}
