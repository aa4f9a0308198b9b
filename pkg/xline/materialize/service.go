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
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
)

// service builds the headless Service fronting a cluster's StatefulSet pods.
func (m *Materializer) service(cluster *xlinev1alpha1.XlineCluster) (*corev1.Service, error) {
	selector := map[string]string{LabelAppOf: cluster.Name, LabelComponent: componentServer}

	ports := servicePorts(cluster)

	svc := &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:            ServiceName(cluster),
			Namespace:       cluster.Namespace,
			Labels:          m.resolveLabels(cluster, componentServer),
			OwnerReferences: []metav1.OwnerReference{ownerReference(cluster)},
		},
		Spec: corev1.ServiceSpec{
			ClusterIP: corev1.ClusterIPNone,
			Selector:  selector,
			Ports:     ports,
		},
	}
	return svc, nil
}

// servicePorts merges the container's declared ports with the well-known
// managed-service and sidecar defaults, which only apply when the user
// hasn't already named a port that role.
func servicePorts(cluster *xlinev1alpha1.XlineCluster) []corev1.ServicePort {
	var ports []corev1.ServicePort
	seen := map[string]bool{}
	for _, p := range cluster.Spec.Container.Ports {
		ports = append(ports, corev1.ServicePort{
			Name:       p.Name,
			Port:       p.ContainerPort,
			TargetPort: intOrStringFromInt(p.ContainerPort),
			Protocol:   p.Protocol,
		})
		seen[p.Name] = true
	}
	if !seen[managedPortName] {
		ports = append(ports, corev1.ServicePort{
			Name:       managedPortName,
			Port:       DefaultManagedPort,
			TargetPort: intOrStringFromInt(DefaultManagedPort),
		})
	}
	if !seen[sidecarPortName] {
		ports = append(ports, corev1.ServicePort{
			Name:       sidecarPortName,
			Port:       DefaultSidecarPort,
			TargetPort: intOrStringFromInt(DefaultSidecarPort),
		})
	}
	return ports
}
