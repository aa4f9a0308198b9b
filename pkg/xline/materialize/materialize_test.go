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

package materialize

import (
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

func testCluster() *xlinev1alpha1.XlineCluster {
	return &xlinev1alpha1.XlineCluster{
		ObjectMeta: metav1.ObjectMeta{Name: "demo", Namespace: "default"},
		Spec: xlinev1alpha1.XlineClusterSpec{
			Size:      3,
			Container: xlinev1alpha1.ContainerSpec{Image: "xline:latest"},
		},
	}
}

func TestServiceIsHeadlessWithDefaultPorts(t *testing.T) {
	m := New(nil, "cluster.local", "v0.1.0", "curlimages/curl")
	svc, err := m.service(testCluster())
	require.NoError(t, err)

	assert.Equal(t, corev1.ClusterIPNone, svc.Spec.ClusterIP)
	names := map[string]bool{}
	for _, p := range svc.Spec.Ports {
		names[p.Name] = true
	}
	assert.True(t, names[managedPortName])
	assert.True(t, names[sidecarPortName])
	assert.Equal(t, "demo", svc.Labels[LabelAppOf])
}

func TestServiceKeepsUserDeclaredPortOverDefault(t *testing.T) {
	c := testCluster()
	c.Spec.Container.Ports = []corev1.ContainerPort{{Name: managedPortName, ContainerPort: 9999}}
	m := New(nil, "cluster.local", "v0.1.0", "curlimages/curl")
	svc, err := m.service(c)
	require.NoError(t, err)

	var found bool
	for _, p := range svc.Spec.Ports {
		if p.Name == managedPortName {
			found = true
			assert.Equal(t, int32(9999), p.Port)
		}
	}
	assert.True(t, found)
}

func TestStatefulSetReplicasAndPeerCommand(t *testing.T) {
	m := New(nil, "cluster.local", "v0.1.0", "curlimages/curl")
	sts, err := m.statefulSet(testCluster(), "demo")
	require.NoError(t, err)

	require.NotNil(t, sts.Spec.Replicas)
	assert.Equal(t, int32(3), *sts.Spec.Replicas)
	assert.Equal(t, "demo", sts.Spec.ServiceName)

	container := sts.Spec.Template.Spec.Containers[0]
	assert.Contains(t, container.Command, "$(POD_NAME)")
	joined := container.Command[len(container.Command)-1]
	assert.Contains(t, joined, "demo-0.demo.default.svc.cluster.local:2379")
	assert.Contains(t, joined, "demo-2.demo.default.svc.cluster.local:2379")
}

func TestStatefulSetUsesEmptyDirWithoutDataPVC(t *testing.T) {
	m := New(nil, "cluster.local", "v0.1.0", "curlimages/curl")
	sts, err := m.statefulSet(testCluster(), "demo")
	require.NoError(t, err)

	require.Len(t, sts.Spec.Template.Spec.Volumes, 1)
	assert.NotNil(t, sts.Spec.Template.Spec.Volumes[0].EmptyDir)
}

func TestStatefulSetRejectsMountUnderReservedDataPath(t *testing.T) {
	c := testCluster()
	c.Spec.Container.VolumeMounts = []corev1.VolumeMount{{Name: "oops", MountPath: DataPath + "/nested"}}
	m := New(nil, "cluster.local", "v0.1.0", "curlimages/curl")

	_, err := m.statefulSet(c, "demo")
	require.Error(t, err)
	assert.ErrorIs(t, err, xlineutil.ErrCannotMount)
}

func TestStatefulSetRejectsReservedVolumeClaimName(t *testing.T) {
	c := testCluster()
	c.Spec.PVCs = []corev1.PersistentVolumeClaim{{ObjectMeta: metav1.ObjectMeta{Name: reservedEmptyDirName}}}
	m := New(nil, "cluster.local", "v0.1.0", "curlimages/curl")

	_, err := m.statefulSet(c, "demo")
	require.Error(t, err)
	assert.ErrorIs(t, err, xlineutil.ErrInvalidVolumeName)
}

func TestCronJobUsesBackupScheduleAndForbidPolicy(t *testing.T) {
	c := testCluster()
	c.Spec.Backup = &xlinev1alpha1.BackupSpec{
		Cron:    "*/15 * * * *",
		Storage: xlinev1alpha1.BackupStorageSpec{S3: &xlinev1alpha1.S3BackupStorage{Bucket: "mybucket"}},
	}
	m := New(nil, "cluster.local", "v0.1.0", "curlimages/curl")
	job := m.cronJob(c, "demo")

	assert.Equal(t, "*/15 * * * *", job.Spec.Schedule)
	cmd := job.Spec.JobTemplate.Spec.Template.Spec.Containers[0].Command
	assert.Contains(t, cmd[len(cmd)-1], "/backup")
}

func TestInheritedLabelsOnlyCopyMatchingPrefixes(t *testing.T) {
	c := testCluster()
	c.Annotations = map[string]string{AnnotationInheritLabels: "team-,env"}
	c.Labels = map[string]string{"team-owner": "db", "environment": "prod", "unrelated": "x"}

	m := New(nil, "cluster.local", "v0.1.0", "curlimages/curl")
	labels := m.resolveLabels(c, componentServer)

	assert.Equal(t, "db", labels["team-owner"])
	assert.Equal(t, "prod", labels["environment"])
	_, found := labels["unrelated"]
	assert.False(t, found)
}

func TestPeerAddressesCoversAllReplicas(t *testing.T) {
	c := testCluster()
	addrs := PeerAddresses(c, "demo", "cluster.local", DefaultManagedPort)
	require.Len(t, addrs, 3)
	assert.Equal(t, "demo-0.demo.default.svc.cluster.local:2379", addrs[0])
	assert.Equal(t, "demo-2.demo.default.svc.cluster.local:2379", addrs[2])
}
