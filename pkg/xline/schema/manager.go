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

// Package schema manages the lifecycle of the XlineCluster
// CustomResourceDefinition: initial install and conservative, decision-free
// migration across schema version labels.
package schema

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	apiextensionsv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextensionsclientset "k8s.io/apiextensions-apiserver/pkg/client/clientset/versioned"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	xlinev1alpha1 "github.com/xline-kv/xline-operator/pkg/xline/apis/v1alpha1"
	"github.com/xline-kv/xline-operator/pkg/xline/version"
	"github.com/xline-kv/xline-operator/pkg/xlineutil"
)

// EstablishedTimeout bounds how long Ensure waits for the CRD's Established
// condition after an install or migration apply.
const EstablishedTimeout = 20 * time.Second

var clusterResource = schema.GroupResource{Group: xlinev1alpha1.GroupName, Resource: "xlineclusters"}

// Config controls the admin-chosen knobs of Ensure. CreateCRD defaults to
// false (fail-closed): operators must opt in to letting the operator
// install its own CRD.
type Config struct {
	CreateCRD     bool
	AutoMigration bool
}

// Manager installs and migrates the XlineCluster schema object.
type Manager struct {
	apiext  apiextensionsclientset.Interface
	dynamic dynamic.Interface
	cfg     Config
	logger  log.Logger
}

// New returns a Manager.
func New(apiext apiextensionsclientset.Interface, dyn dynamic.Interface, cfg Config, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Manager{apiext: apiext, dynamic: dyn, cfg: cfg, logger: logger}
}

// Ensure installs or migrates the schema so that current is a served
// version, per the conservative algorithm: never guess, only auto-migrate
// the storage version when every precondition holds.
func (m *Manager) Ensure(ctx context.Context, current version.Label) error {
	existing, err := m.apiext.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, CRDName, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return m.install(ctx)
	}
	if err != nil {
		return errors.Wrap(xlineutil.ErrPlatformAPI, err.Error())
	}
	return m.reconcileExisting(ctx, existing, current)
}

func (m *Manager) install(ctx context.Context) error {
	if !m.cfg.CreateCRD {
		return errors.Wrap(xlineutil.ErrSchemaConflict, "schema not installed and create-crd is disabled")
	}
	manifest, err := loadManifest()
	if err != nil {
		return err
	}
	if _, err := m.apiext.ApiextensionsV1().CustomResourceDefinitions().Create(ctx, manifest, metav1.CreateOptions{}); err != nil {
		return errors.Wrap(xlineutil.ErrPlatformAPI, "create CRD: "+err.Error())
	}
	level.Info(m.logger).Log("msg", "installed CRD", "name", CRDName)
	return m.waitEstablished(ctx)
}

func (m *Manager) reconcileExisting(ctx context.Context, existing *apiextensionsv1.CustomResourceDefinition, current version.Label) error {
	var (
		existingLabels []version.Label
		storageName    string
		storageLabel   version.Label
		currentExists  bool
	)
	for _, v := range existing.Spec.Versions {
		lbl, err := version.Parse(v.Name)
		if err != nil {
			continue
		}
		existingLabels = append(existingLabels, lbl)
		if v.Name == current.String() {
			currentExists = true
		}
		if v.Storage {
			storageName, storageLabel = v.Name, lbl
		}
	}

	if !currentExists {
		return m.addVersion(ctx, existing, current)
	}

	if !m.cfg.AutoMigration {
		return nil
	}
	if current.Compare(storageLabel) == 0 {
		return nil
	}
	if !version.GreaterOrEqualToAll(current, existingLabels) {
		return nil
	}

	empty, err := m.noInstancesAtVersion(ctx, storageName)
	if err != nil {
		return err
	}
	if !empty && !current.CompatWith(storageLabel) {
		level.Info(m.logger).Log("msg", "skipping migration, current version incompatible with storage version holding live instances",
			"current", current, "storage", storageLabel)
		return nil
	}

	return m.migrateStorage(ctx, existing, current)
}

// addVersion merges current into the existing definition as a
// newly-served, non-storage version, leaving the storage version unchanged.
func (m *Manager) addVersion(ctx context.Context, existing *apiextensionsv1.CustomResourceDefinition, current version.Label) error {
	manifest, err := loadManifest()
	if err != nil {
		return err
	}
	var template apiextensionsv1.CustomResourceDefinitionVersion
	for _, v := range manifest.Spec.Versions {
		if v.Name == current.String() {
			template = v
			break
		}
	}
	if template.Name == "" {
		return errors.Wrapf(xlineutil.ErrSchemaConflict, "no embedded schema for version %s", current)
	}
	template.Storage = false

	updated := existing.DeepCopy()
	updated.Spec.Versions = append(updated.Spec.Versions, template)
	if _, err := m.apiext.ApiextensionsV1().CustomResourceDefinitions().Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return errors.Wrap(xlineutil.ErrPlatformAPI, "add version to CRD: "+err.Error())
	}
	level.Info(m.logger).Log("msg", "added served version to CRD", "version", current)
	return m.waitEstablished(ctx)
}

// migrateStorage flips the storage flag onto current, leaving every other
// served version intact.
func (m *Manager) migrateStorage(ctx context.Context, existing *apiextensionsv1.CustomResourceDefinition, current version.Label) error {
	updated := existing.DeepCopy()
	for i := range updated.Spec.Versions {
		updated.Spec.Versions[i].Storage = updated.Spec.Versions[i].Name == current.String()
	}
	if _, err := m.apiext.ApiextensionsV1().CustomResourceDefinitions().Update(ctx, updated, metav1.UpdateOptions{}); err != nil {
		return errors.Wrap(xlineutil.ErrPlatformAPI, "migrate CRD storage version: "+err.Error())
	}
	level.Info(m.logger).Log("msg", "migrated CRD storage version", "version", current)
	return m.waitEstablished(ctx)
}

func (m *Manager) noInstancesAtVersion(ctx context.Context, versionName string) (bool, error) {
	gvr := schema.GroupVersionResource{Group: clusterResource.Group, Version: versionName, Resource: clusterResource.Resource}
	list, err := m.dynamic.Resource(gvr).Namespace(metav1.NamespaceAll).List(ctx, metav1.ListOptions{Limit: 1})
	if err != nil {
		return false, errors.Wrap(xlineutil.ErrPlatformAPI, "list instances at storage version: "+err.Error())
	}
	return len(list.Items) == 0, nil
}

func (m *Manager) waitEstablished(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, EstablishedTimeout)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		crd, err := m.apiext.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, CRDName, metav1.GetOptions{})
		if err == nil && isEstablished(crd) {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(xlineutil.ErrSchemaConflict, "timed out waiting for CRD to become Established")
		case <-ticker.C:
		}
	}
}

func isEstablished(crd *apiextensionsv1.CustomResourceDefinition) bool {
	for _, c := range crd.Status.Conditions {
		if c.Type == apiextensionsv1.Established && c.Status == apiextensionsv1.ConditionTrue {
			return true
		}
	}
	return false
}
