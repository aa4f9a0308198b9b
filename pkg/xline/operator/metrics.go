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

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the operator-side counters, histogram and gauge named in
// the error handling design and in the original metrics.rs this system
// was distilled from: operator_reconcile_duration_seconds,
// operator_reconcile_failed_count{reason}, xline_operator_managed_clusters.
type Metrics struct {
	ReconcileDuration prometheus.Histogram
	ReconcileFailed   *prometheus.CounterVec
	ManagedClusters   prometheus.Gauge
}

// NewMetrics constructs Metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "operator",
			Name:      "reconcile_duration_seconds",
			Help:      "Time taken by a single cluster reconcile.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ReconcileFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "operator",
			Name:      "reconcile_failed_count",
			Help:      "Reconciles that ended in an error, by class.",
		}, []string{"reason"}),
		ManagedClusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xline",
			Name:      "operator_managed_clusters",
			Help:      "Number of XlineCluster objects currently materialized by this operator.",
		}),
	}
	reg.MustRegister(m.ReconcileDuration, m.ReconcileFailed, m.ManagedClusters)
	return m
}
