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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	ctrlfake "sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
	"github.com/xline-kv/xline-operator/pkg/xline/materialize"
)

func newTestCluster() *xlinev1alpha1.XlineCluster {
	return &xlinev1alpha1.XlineCluster{
		ObjectMeta: metav1.ObjectMeta{Name: "demo", Namespace: "default"},
		Spec: xlinev1alpha1.XlineClusterSpec{
			Size:      3,
			Container: xlinev1alpha1.ContainerSpec{Image: "xline:latest"},
		},
	}
}

func TestReconcileMaterializesChildrenAndSetsStatus(t *testing.T) {
	cluster := newTestCluster()
	pod := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "demo-0",
			Namespace: "default",
			Labels:    map[string]string{materialize.LabelAppOf: "demo", materialize.LabelComponent: serverComponentLabel},
		},
		Status: corev1.PodStatus{
			Phase:      corev1.PodRunning,
			Conditions: []corev1.PodCondition{{Type: corev1.PodReady, Status: corev1.ConditionTrue}},
		},
	}

	fc := ctrlfake.NewClientBuilder().
		WithScheme(Scheme).
		WithObjects(cluster, pod).
		WithStatusSubresource(&xlinev1alpha1.XlineCluster{}).
		Build()

	mat := materialize.New(fc, "cluster.local", "v0.1.0", "curlimages/curl")
	r := &Reconciler{Client: fc, Materializer: mat, Metrics: NewMetrics(prometheus.NewRegistry()), Logger: nil}

	_, err := r.Reconcile(context.Background(), reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "demo"}})
	require.NoError(t, err)

	var got xlinev1alpha1.XlineCluster
	require.NoError(t, fc.Get(context.Background(), types.NamespacedName{Namespace: "default", Name: "demo"}, &got))
	require.Equal(t, int32(1), got.Status.Available)
	require.Contains(t, got.Status.Members, "demo-0")
}

func TestReconcileIsNoOpWhenClusterDeleted(t *testing.T) {
	fc := ctrlfake.NewClientBuilder().WithScheme(Scheme).WithStatusSubresource(&xlinev1alpha1.XlineCluster{}).Build()
	mat := materialize.New(fc, "cluster.local", "v0.1.0", "curlimages/curl")
	r := &Reconciler{Client: fc, Materializer: mat, Metrics: NewMetrics(prometheus.NewRegistry()), Logger: nil}

	res, err := r.Reconcile(context.Background(), reconcile.Request{NamespacedName: types.NamespacedName{Namespace: "default", Name: "gone"}})
	require.NoError(t, err)
	require.Equal(t, reconcile.Result{}, res)
}
