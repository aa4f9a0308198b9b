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

package sidecar

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the sidecar-side counters and histograms named in the
// error handling design: sidecar_reconcile_*, sidecar_restart_managed_count,
// sidecar_seed_count.
type Metrics struct {
	ReconcileDuration prometheus.Histogram
	ReconcileFailed   *prometheus.CounterVec
	RestartManaged    prometheus.Counter
	Seed              prometheus.Counter
}

// NewMetrics constructs Metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sidecar",
			Name:      "reconcile_duration_seconds",
			Help:      "Time taken by a single reconcile tick.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ReconcileFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sidecar",
			Name:      "reconcile_failed_count",
			Help:      "Reconcile ticks that ended in an error, by class.",
		}, []string{"reason"}),
		RestartManaged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sidecar",
			Name:      "restart_managed_count",
			Help:      "Number of times this sidecar restarted the managed-service process.",
		}),
		Seed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sidecar",
			Name:      "seed_count",
			Help:      "Number of times this sidecar acted as the seeder for a cold or recovered cluster.",
		}),
	}
	reg.MustRegister(m.ReconcileDuration, m.ReconcileFailed, m.RestartManaged, m.Seed)
	return m
}
