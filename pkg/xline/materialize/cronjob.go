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
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
)

// cronJob builds the scheduled backup job. The job container performs a
// single GET against a randomly-chosen peer's /backup endpoint; the
// kubectl-less image just needs curl (or equivalent) and the random pick
// happens in its entrypoint at schedule(rand) time via $RANDOM, so the
// template only needs to know the addressable range.
func (m *Materializer) cronJob(cluster *xlinev1alpha1.XlineCluster, svcName string) *batchv1.CronJob {
	forbid := batchv1.ForbidConcurrent
	target := fmt.Sprintf("http://%s-$((RANDOM %% %d)).%s.%s.svc.%s:%d/backup",
		cluster.Name, cluster.Spec.Size, svcName, cluster.Namespace, m.dnsSuffix, sidecarPort(cluster))

	job := &batchv1.CronJob{
		TypeMeta: metav1.TypeMeta{APIVersion: "batch/v1", Kind: "CronJob"},
		ObjectMeta: metav1.ObjectMeta{
			Name:            cluster.Name + "-backup",
			Namespace:       cluster.Namespace,
			Labels:          m.resolveLabels(cluster, componentBackupJob),
			OwnerReferences: []metav1.OwnerReference{ownerReference(cluster)},
		},
		Spec: batchv1.CronJobSpec{
			Schedule:          cluster.Spec.Backup.Cron,
			ConcurrencyPolicy: forbid,
			JobTemplate: batchv1.JobTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: m.resolveLabels(cluster, componentBackupJob)},
				Spec: batchv1.JobSpec{
					Template: corev1.PodTemplateSpec{
						ObjectMeta: metav1.ObjectMeta{Labels: m.resolveLabels(cluster, componentBackupJob)},
						Spec: corev1.PodSpec{
							RestartPolicy: corev1.RestartPolicyNever,
							Containers: []corev1.Container{{
								Name:    "trigger-backup",
								Image:   m.backupImage,
								Command: []string{"/bin/sh", "-c", "curl -fsS -X GET " + target},
							}},
						},
					},
				},
			},
		},
	}
	return job
}
