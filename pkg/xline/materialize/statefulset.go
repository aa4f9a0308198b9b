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
	"strings"

	"github.com/pkg/errors"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

const containerName = "xline"

// statefulSet builds the stateful workload running the managed-service
// process, one pod per cluster member.
func (m *Materializer) statefulSet(cluster *xlinev1alpha1.XlineCluster, svcName string) (*appsv1.StatefulSet, error) {
	if err := checkReservedMounts(cluster); err != nil {
		return nil, err
	}

	container, dataVolume, _ := m.buildContainer(cluster, svcName)

	claims := m.volumeClaimTemplates(cluster)

	var volumes []corev1.Volume
	if dataVolume != nil {
		volumes = append(volumes, *dataVolume)
	}

	selector := map[string]string{LabelAppOf: cluster.Name, LabelComponent: componentServer}
	maxUnavailable := intstr.FromString("50%")

	sts := &appsv1.StatefulSet{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "StatefulSet"},
		ObjectMeta: metav1.ObjectMeta{
			Name:            cluster.Name,
			Namespace:       cluster.Namespace,
			Labels:          m.resolveLabels(cluster, componentServer),
			OwnerReferences: []metav1.OwnerReference{ownerReference(cluster)},
		},
		Spec: appsv1.StatefulSetSpec{
			Replicas:    &cluster.Spec.Size,
			ServiceName: svcName,
			Selector:    &metav1.LabelSelector{MatchLabels: selector},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: m.resolveLabels(cluster, componentServer)},
				Spec: corev1.PodSpec{
					Affinity:   cluster.Spec.Affinity,
					Containers: []corev1.Container{container},
					Volumes:    volumes,
				},
			},
			VolumeClaimTemplates: claims,
			UpdateStrategy: appsv1.StatefulSetUpdateStrategy{
				Type: appsv1.RollingUpdateStatefulSetStrategyType,
				RollingUpdate: &appsv1.RollingUpdateStatefulSetStrategy{
					MaxUnavailable: &maxUnavailable,
				},
			},
		},
	}
	return sts, nil
}

// checkReservedMounts rejects user-declared mounts beneath the reserved
// data or backup paths, and user volume claims colliding with the reserved
// empty-dir volume name.
func checkReservedMounts(cluster *xlinev1alpha1.XlineCluster) error {
	for _, vm := range cluster.Spec.Container.VolumeMounts {
		if underReservedPath(vm.MountPath) {
			return errors.Wrapf(xlineutil.ErrCannotMount, "container volume mount %q at %q collides with a reserved path", vm.Name, vm.MountPath)
		}
	}
	for _, pvc := range cluster.Spec.PVCs {
		if pvc.Name == reservedEmptyDirName {
			return errors.Wrapf(xlineutil.ErrInvalidVolumeName, "user PVC named %q collides with the reserved data volume", pvc.Name)
		}
	}
	return nil
}

func underReservedPath(path string) bool {
	clean := strings.TrimSuffix(path, "/")
	return clean == strings.TrimSuffix(DataPath, "/") || strings.HasPrefix(clean, DataPath+"/") ||
		clean == strings.TrimSuffix(BackupPath, "/") || strings.HasPrefix(clean, BackupPath+"/")
}

// buildContainer returns the user container augmented with the reserved
// mounts, POD_NAME env var, and managed-service start command, plus the
// data emptyDir volume when no data PVC was requested and the backup
// volume mount descriptor (nil unless backup storage is a PVC).
func (m *Materializer) buildContainer(cluster *xlinev1alpha1.XlineCluster, svcName string) (corev1.Container, *corev1.Volume, *corev1.VolumeMount) {
	c := corev1.Container{
		Name:      containerName,
		Image:     cluster.Spec.Container.Image,
		Ports:     cluster.Spec.Container.Ports,
		Env:       append([]corev1.EnvVar{}, cluster.Spec.Container.Env...),
		Resources: cluster.Spec.Container.Resources,
	}
	c.Env = append(c.Env, corev1.EnvVar{
		Name: podNameEnvVar,
		ValueFrom: &corev1.EnvVarSource{
			FieldRef: &corev1.ObjectFieldSelector{FieldPath: "metadata.name"},
		},
	})

	c.VolumeMounts = append([]corev1.VolumeMount{}, cluster.Spec.Container.VolumeMounts...)

	var dataVolume *corev1.Volume
	if cluster.Spec.Data == nil || cluster.Spec.Data.PVC == nil {
		dataVolume = &corev1.Volume{
			Name:         reservedEmptyDirName,
			VolumeSource: corev1.VolumeSource{EmptyDir: &corev1.EmptyDirVolumeSource{}},
		}
		c.VolumeMounts = append(c.VolumeMounts, corev1.VolumeMount{Name: reservedEmptyDirName, MountPath: DataPath})
	} else {
		c.VolumeMounts = append(c.VolumeMounts, corev1.VolumeMount{Name: dataPVCName, MountPath: DataPath})
	}

	var backupMount *corev1.VolumeMount
	if cluster.Spec.Backup != nil && cluster.Spec.Backup.Storage.PVC != nil {
		backupMount = &corev1.VolumeMount{Name: backupPVCName, MountPath: BackupPath}
		c.VolumeMounts = append(c.VolumeMounts, *backupMount)
	}

	peers := PeerAddresses(cluster, svcName, m.dnsSuffix, managedPort(cluster))
	c.Command = []string{
		"xline",
		"--name", "$(" + podNameEnvVar + ")",
		"--members", strings.Join(peers, ","),
	}

	return c, dataVolume, backupMount
}

const (
	dataPVCName   = "xline-data"
	backupPVCName = "xline-backup"
)

// volumeClaimTemplates returns the backup PVC (if configured), the data PVC
// (if configured), and any user-declared PVCs, in that order.
func (m *Materializer) volumeClaimTemplates(cluster *xlinev1alpha1.XlineCluster) []corev1.PersistentVolumeClaim {
	var claims []corev1.PersistentVolumeClaim

	if cluster.Spec.Backup != nil && cluster.Spec.Backup.Storage.PVC != nil {
		claims = append(claims, corev1.PersistentVolumeClaim{
			ObjectMeta: metav1.ObjectMeta{Name: backupPVCName},
		})
	}
	if cluster.Spec.Data != nil && cluster.Spec.Data.PVC != nil {
		claims = append(claims, corev1.PersistentVolumeClaim{
			ObjectMeta: metav1.ObjectMeta{Name: dataPVCName},
			Spec:       *cluster.Spec.Data.PVC,
		})
	}
	claims = append(claims, cluster.Spec.PVCs...)
	return claims
}

func managedPort(cluster *xlinev1alpha1.XlineCluster) int32 {
	for _, p := range cluster.Spec.Container.Ports {
		if p.Name == managedPortName {
			return p.ContainerPort
		}
	}
	return DefaultManagedPort
}

// sidecarPort mirrors managedPort for the sidecar role; used by cronjob.go.
func sidecarPort(cluster *xlinev1alpha1.XlineCluster) int32 {
	for _, p := range cluster.Spec.Container.Ports {
		if p.Name == sidecarPortName {
			return p.ContainerPort
		}
	}
	return DefaultSidecarPort
}
