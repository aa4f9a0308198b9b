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

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	ctrl "sigs.k8s.io/controller-runtime"
	ctrlcache "sigs.k8s.io/controller-runtime/pkg/cache"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
	"github.com/xline-kv/xline-operator/pkg/xline/materialize"
)

// Scheme is the runtime.Scheme every binary registers the XlineCluster
// types into alongside the built-in Kubernetes types.
var Scheme = runtime.NewScheme()

func init() {
	_ = clientgoscheme.AddToScheme(Scheme)
	_ = xlinev1alpha1.AddToScheme(Scheme)
}

// Host owns the controller-runtime manager that drives the reconciler
// against the platform's watch stream and exposes the client the rest of
// the operator binary shares (materializer apply, supervisor pod
// deletion, cluster-size lookup).
type Host struct {
	mgr ctrl.Manager
	rec *Reconciler
}

// NewHost builds a controller-runtime manager bound to cfg, restricted to
// namespace (empty string watches all namespaces), and registers the
// reconciler driving a materializer built against the manager's own cached
// client (dnsSuffix, schemaVersion and backupImage are forwarded to
// materialize.New).
func NewHost(cfg *rest.Config, namespace, dnsSuffix, schemaVersion, backupImage string, metrics *Metrics, logger log.Logger) (*Host, error) {
	opts := ctrl.Options{Scheme: Scheme}
	if namespace != "" {
		opts.Cache.DefaultNamespaces = map[string]ctrlcache.Config{namespace: {}}
	}
	mgr, err := ctrl.NewManager(cfg, opts)
	if err != nil {
		return nil, errors.Wrap(err, "build controller-runtime manager")
	}

	rec := &Reconciler{
		Client:       mgr.GetClient(),
		Materializer: materialize.New(mgr.GetClient(), dnsSuffix, schemaVersion, backupImage),
		Metrics:      metrics,
		Logger:       logger,
	}
	if err := rec.SetupWithManager(mgr); err != nil {
		return nil, errors.Wrap(err, "register reconciler")
	}

	return &Host{mgr: mgr, rec: rec}, nil
}

// Run blocks until ctx is cancelled, running the manager's controllers.
func (h *Host) Run(ctx context.Context) error {
	return h.mgr.Start(ctx)
}

// Manager exposes the underlying controller-runtime manager, primarily so
// main can build a ClusterLookup against the same cached client.
func (h *Host) Manager() ctrl.Manager { return h.mgr }
