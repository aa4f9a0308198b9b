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

package operator

import (
	"context"

	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// ClusterLookup satisfies supervisor.SizeLookup and supervisor.PodDeleter
// by reading/acting through the controller's own client.Client, keyed on
// the fixed install namespace.
type ClusterLookup struct {
	client    client.Client
	namespace string
}

// NewClusterLookup returns a ClusterLookup scoped to namespace.
func NewClusterLookup(c client.Client, namespace string) *ClusterLookup {
	return &ClusterLookup{client: c, namespace: namespace}
}

// ClusterSize implements supervisor.SizeLookup.
func (l *ClusterLookup) ClusterSize(ctx context.Context, clusterName string) (int, error) {
	var cluster xlinev1alpha1.XlineCluster
	if err := l.client.Get(ctx, types.NamespacedName{Namespace: l.namespace, Name: clusterName}, &cluster); err != nil {
		if apierrors.IsNotFound(err) {
			return 0, errors.Wrap(xlineutil.ErrNotFound, "cluster "+clusterName)
		}
		return 0, errors.Wrap(xlineutil.ErrPlatformAPI, err.Error())
	}
	return int(cluster.Spec.Size), nil
}

// DeletePod implements supervisor.PodDeleter: it deletes the pod named
// memberName in the lookup's namespace, since the materializer names
// StatefulSet replicas "<cluster>-<ordinal>" and the sidecar's self_name
// matches its own pod name. clusterName is not used. A pod that is already
// gone is not an error.
func (l *ClusterLookup) DeletePod(ctx context.Context, clusterName, memberName string) error {
	pod := &corev1.Pod{}
	pod.Namespace = l.namespace
	pod.Name = memberName
	if err := l.client.Delete(ctx, pod); err != nil {
		if apierrors.IsNotFound(err) {
			return nil
		}
		return errors.Wrap(xlineutil.ErrPlatformAPI, "delete pod "+memberName+": "+err.Error())
	}
	return nil
}
