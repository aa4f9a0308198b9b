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

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// Workload derives membership from a platform StatefulSet's replica count
// and ordinal stride instead of a separate registration protocol: member i
// is always named "<statefulset>-i" with a stable DNS name, so no runtime
// registration round-trip is needed once the workload exists.
type Workload struct {
	client      kubernetes.Interface
	namespace   string
	statefulSet string
	service     string
	dnsSuffix   string
}

// NewWorkload returns a Registry that reads the replica count of
// statefulSet in namespace and synthesizes member DNS names against
// service and dnsSuffix (e.g. "cluster.local").
func NewWorkload(client kubernetes.Interface, namespace, statefulSet, service, dnsSuffix string) *Workload {
	return &Workload{
		client:      client,
		namespace:   namespace,
		statefulSet: statefulSet,
		service:     service,
		dnsSuffix:   dnsSuffix,
	}
}

// Fetch implements Registry. selfName and selfHost are ignored: the
// StatefulSet controller, not the sidecar, owns pod identity here.
func (w *Workload) Fetch(ctx context.Context, _, _ string) (Result, error) {
	ss, err := w.client.AppsV1().StatefulSets(w.namespace).Get(ctx, w.statefulSet, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return Result{}, errors.Wrapf(xlineutil.ErrNotFound, "statefulset %s/%s", w.namespace, w.statefulSet)
		}
		return Result{}, errors.Wrapf(xlineutil.ErrPlatformAPI, "getting statefulset %s/%s: %v", w.namespace, w.statefulSet, err)
	}

	size := desiredReplicas(ss)
	members := make(map[string]string, size)
	for i := 0; i < size; i++ {
		name := fmt.Sprintf("%s-%d", w.statefulSet, i)
		host := fmt.Sprintf("%s.%s.%s.svc.%s", name, w.service, w.namespace, w.dnsSuffix)
		members[name] = host
	}
	return Result{Members: members, TargetSize: size}, nil
}

func desiredReplicas(ss *appsv1.StatefulSet) int {
	if ss.Spec.Replicas == nil {
		return 1
	}
	return int(*ss.Spec.Replicas)
}
