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

// Package materialize translates an XlineCluster custom resource into the
// platform objects that realize it: a headless Service, a StatefulSet, and
// an optional CronJob. Every object is (re)applied on each reconcile via
// server-side apply under a fixed field-manager identity, mirroring the
// idempotent apply loop the teacher's collection reconciler runs for its
// DaemonSet and ConfigMap.
package materialize

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
)

// FieldManager is the stable identity the operator applies platform objects
// under. Using the same identity on every apply makes field ownership
// idempotent and conflict-free across reconciles.
const FieldManager = "xline-operator"

const (
	// DataPath is the reserved mount point for the managed-service's data directory.
	DataPath = "/var/lib/xline/data"
	// BackupPath is the reserved mount point for local backup storage.
	BackupPath = "/var/lib/xline/backup"

	// reservedEmptyDirName is the volume name the materializer uses for the
	// data-path fallback when the cluster spec requests no data PVC. User
	// volume claims must not collide with it.
	reservedEmptyDirName = "xline-data-emptydir"

	managedPortName = "managed"
	sidecarPortName = "sidecar"

	// DefaultManagedPort is used for the managed-service role when the user
	// container declares no port of that name.
	DefaultManagedPort = 2379
	// DefaultSidecarPort is used for the sidecar role when the user
	// container declares no port of that name.
	DefaultSidecarPort = 2380

	podNameEnvVar = "POD_NAME"

	// LabelAppOf names the owning cluster on every materialized object.
	LabelAppOf = "app-of"
	// LabelComponent names the role of a materialized object.
	LabelComponent = "component"
	// LabelOperatorVersion records the operator build that last applied an object.
	LabelOperatorVersion = "operator-version"

	// AnnotationInheritLabels lists comma-separated label-key prefixes that
	// should be copied from the XlineCluster onto every materialized object.
	AnnotationInheritLabels = "xline.io/inherit-labels"

	componentServer    = "server"
	componentBackupJob = "backup-job"
)

// Materializer derives and applies the platform objects for a cluster spec.
type Materializer struct {
	client      client.Client
	dnsSuffix   string
	version     string
	backupImage string
}

// New returns a Materializer. dnsSuffix is the cluster-domain suffix used
// when synthesizing peer addresses (commonly "cluster.local"). version is
// stamped onto the operator-version label. backupImage is the small image
// the scheduled backup job runs to invoke a peer's /backup endpoint.
func New(c client.Client, dnsSuffix, version, backupImage string) *Materializer {
	return &Materializer{client: c, dnsSuffix: dnsSuffix, version: version, backupImage: backupImage}
}

// Apply (re)materializes the Service, StatefulSet, and (if configured)
// CronJob for cluster, in that order, and returns the first error.
func (m *Materializer) Apply(ctx context.Context, cluster *xlinev1alpha1.XlineCluster) error {
	svc, err := m.service(cluster)
	if err != nil {
		return errors.Wrap(err, "build service")
	}
	if err := m.serverSideApply(ctx, svc); err != nil {
		return errors.Wrap(err, "apply service")
	}

	sts, err := m.statefulSet(cluster, svc.Name)
	if err != nil {
		return err
	}
	if err := m.serverSideApply(ctx, sts); err != nil {
		return errors.Wrap(err, "apply statefulset")
	}

	if cluster.Spec.Backup != nil {
		job := m.cronJob(cluster, svc.Name)
		if err := m.serverSideApply(ctx, job); err != nil {
			return errors.Wrap(err, "apply cronjob")
		}
	}
	return nil
}

func (m *Materializer) serverSideApply(ctx context.Context, obj client.Object) error {
	return m.client.Patch(ctx, obj, client.Apply, client.FieldOwner(FieldManager), client.ForceOwnership)
}

// ServiceName returns the stable headless service name for a cluster.
func ServiceName(cluster *xlinev1alpha1.XlineCluster) string {
	return cluster.Name
}

// PeerAddresses synthesizes the `name-<i>.<svc>.<ns>.svc.<dns-suffix>:<port>`
// list the managed-service process is started with.
func PeerAddresses(cluster *xlinev1alpha1.XlineCluster, svcName, dnsSuffix string, port int32) []string {
	out := make([]string, 0, cluster.Spec.Size)
	for i := int32(0); i < cluster.Spec.Size; i++ {
		out = append(out, peerHost(cluster.Name, i, svcName, cluster.Namespace, dnsSuffix, port))
	}
	return out
}

func peerHost(clusterName string, i int32, svcName, namespace, dnsSuffix string, port int32) string {
	return clusterName + "-" + strconv.Itoa(int(i)) + "." + svcName + "." + namespace + ".svc." + dnsSuffix + ":" + strconv.Itoa(int(port))
}
