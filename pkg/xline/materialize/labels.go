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

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
)

// resolveLabels builds the label set a materialized object carries: the
// fixed {app-of, component, operator-version} triple plus whatever labels
// on cluster match a prefix named in its inherit-labels annotation.
func (m *Materializer) resolveLabels(cluster *xlinev1alpha1.XlineCluster, component string) map[string]string {
	out := map[string]string{
		LabelAppOf:           cluster.Name,
		LabelComponent:       component,
		LabelOperatorVersion: m.version,
	}
	for k, v := range inheritedLabels(cluster) {
		out[k] = v
	}
	return out
}

func inheritedLabels(cluster *xlinev1alpha1.XlineCluster) map[string]string {
	spec := cluster.Annotations[AnnotationInheritLabels]
	if spec == "" {
		return nil
	}
	var prefixes []string
	for _, p := range strings.Split(spec, ",") {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		return nil
	}
	out := map[string]string{}
	for k, v := range cluster.Labels {
		for _, prefix := range prefixes {
			if strings.HasPrefix(k, prefix) {
				out[k] = v
				break
			}
		}
	}
	return out
}

// ownerReference returns a controller owner reference to cluster.
func ownerReference(cluster *xlinev1alpha1.XlineCluster) metav1.OwnerReference {
	return *metav1.NewControllerRef(cluster, xlinev1alpha1.SchemeGroupVersion.WithKind("XlineCluster"))
}
