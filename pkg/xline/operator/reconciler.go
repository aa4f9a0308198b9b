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
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/labels"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
	"github.com/xline-kv/xline-operator/pkg/xline/materialize"
	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// DefaultRequeueDuration is the fixed retry delay after a failed reconcile.
// A subsequent watch event (spec/status/child change) retries immediately
// regardless of this delay.
const DefaultRequeueDuration = 600 * time.Second

// serverComponentLabel is the value materialize.go stamps on every
// StatefulSet-managed pod's LabelComponent.
const serverComponentLabel = "server"

// Reconciler drives C9's materializer from the platform's watch stream for
// XlineCluster objects.
type Reconciler struct {
	Client       client.Client
	Materializer *materialize.Materializer
	Metrics      *Metrics
	Logger       log.Logger
}

var _ reconcile.Reconciler = (*Reconciler)(nil)

func (r *Reconciler) logger() log.Logger {
	if r.Logger == nil {
		return log.NewNopLogger()
	}
	return r.Logger
}

// SetupWithManager wires the reconciler to fire on XlineCluster changes and
// on changes to the objects it owns.
func (r *Reconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&xlinev1alpha1.XlineCluster{}).
		Owns(&appsv1.StatefulSet{}).
		Owns(&corev1.Service{}).
		Owns(&batchv1.CronJob{}).
		Complete(r)
}

// Reconcile implements reconcile.Reconciler.
func (r *Reconciler) Reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	start := time.Now()
	result, err := r.reconcile(ctx, req)
	if r.Metrics != nil {
		r.Metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			r.Metrics.ReconcileFailed.WithLabelValues(xlineutil.Reason(err)).Inc()
		}
	}
	if err != nil {
		level.Warn(r.logger()).Log("msg", "reconcile failed, will retry", "cluster", req.NamespacedName, "err", err, "retry_after", DefaultRequeueDuration)
		return reconcile.Result{RequeueAfter: DefaultRequeueDuration}, nil
	}
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, req reconcile.Request) (reconcile.Result, error) {
	var cluster xlinev1alpha1.XlineCluster
	if err := r.Client.Get(ctx, req.NamespacedName, &cluster); err != nil {
		if apierrors.IsNotFound(err) {
			return reconcile.Result{}, nil
		}
		return reconcile.Result{}, err
	}

	if err := cluster.ValidateCreate(); err != nil {
		level.Warn(r.logger()).Log("msg", "cluster spec failed validation, not materializing", "cluster", req.NamespacedName, "err", err)
		return reconcile.Result{}, errors.Wrap(xlineutil.ErrValidationFailed, err.Error())
	}

	if err := r.Materializer.Apply(ctx, &cluster); err != nil {
		return reconcile.Result{}, err
	}

	if err := r.updateStatus(ctx, &cluster); err != nil {
		return reconcile.Result{}, err
	}

	if r.Metrics != nil {
		r.refreshManagedClusters(ctx)
	}
	return reconcile.Result{}, nil
}

// updateStatus counts ready pods owned by the cluster's StatefulSet and
// writes status.available, and rebuilds status.members from the same pods
// (pod name -> "<pod>.<service>", with no port).
func (r *Reconciler) updateStatus(ctx context.Context, cluster *xlinev1alpha1.XlineCluster) error {
	var pods corev1.PodList
	sel := labels.SelectorFromSet(labels.Set{
		materialize.LabelAppOf:     cluster.Name,
		materialize.LabelComponent: serverComponentLabel,
	})
	if err := r.Client.List(ctx, &pods, client.InNamespace(cluster.Namespace), client.MatchingLabelsSelector{Selector: sel}); err != nil {
		return err
	}

	members := make(map[string]string, len(pods.Items))
	var available int32
	svcName := materialize.ServiceName(cluster)
	for _, pod := range pods.Items {
		if podReady(&pod) {
			available++
		}
		members[pod.Name] = pod.Name + "." + svcName
	}

	if cluster.Status.Available == available && mapsEqual(cluster.Status.Members, members) {
		return nil
	}
	cluster.Status.Available = available
	cluster.Status.Members = members
	return r.Client.Status().Update(ctx, cluster)
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, c := range pod.Status.Conditions {
		if c.Type == corev1.PodReady {
			return c.Status == corev1.ConditionTrue
		}
	}
	return false
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (r *Reconciler) refreshManagedClusters(ctx context.Context) {
	var list xlinev1alpha1.XlineClusterList
	if err := r.Client.List(ctx, &list); err != nil {
		return
	}
	r.Metrics.ManagedClusters.Set(float64(len(list.Items)))
}
