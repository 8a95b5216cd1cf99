/*
Copyright 2024 EscherCloud.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package kernel

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// Metrics counts kernel lifecycle operations.  They live on the controller
// runtime registry so they come out of the same /metrics endpoint as the
// client-go ones.
type Metrics struct {
	// Creation counts kernels successfully submitted to the cluster.
	Creation *prometheus.CounterVec

	// FailedCreation counts kernels the cluster refused.
	FailedCreation *prometheus.CounterVec

	// Deletion counts kernel deletion attempts.
	Deletion *prometheus.CounterVec

	// WaitTimeout counts kernels that never reported ready in time.
	WaitTimeout *prometheus.CounterVec
}

//nolint:gochecknoglobals
var (
	metricsInstance *Metrics
	metricsOnce     sync.Once
)

// NewMetrics returns the kernel metrics, registering them on first use.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			Creation: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "kernel_create_total",
					Help: "Total times of creating kernels",
				},
				[]string{"namespace"},
			),
			FailedCreation: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "kernel_create_failed_total",
					Help: "Total failure times of creating kernels",
				},
				[]string{"namespace"},
			),
			Deletion: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "kernel_delete_total",
					Help: "Total times of deleting kernels",
				},
				[]string{"namespace"},
			),
			WaitTimeout: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "kernel_wait_ready_timeout_total",
					Help: "Total times a kernel failed to become ready in time",
				},
				[]string{"namespace"},
			),
		}

		metrics.Registry.MustRegister(
			metricsInstance.Creation,
			metricsInstance.FailedCreation,
			metricsInstance.Deletion,
			metricsInstance.WaitTimeout,
		)
	})

	return metricsInstance
}
