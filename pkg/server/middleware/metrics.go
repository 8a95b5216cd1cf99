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

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

//nolint:gochecknoglobals
var (
	requestDuration     *prometheus.HistogramVec
	requestDurationOnce sync.Once
)

// Metrics observes request durations, labelled by method and status.  Paths
// are deliberately not a label, kernel IDs would blow the cardinality.
func Metrics() func(next http.Handler) http.Handler {
	requestDurationOnce.Do(func() {
		requestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request latencies",
			},
			[]string{"method", "status"},
		)

		metrics.Registry.MustRegister(requestDuration)
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			writer := &loggingResponseWriter{next: w}

			next.ServeHTTP(writer, r)

			requestDuration.WithLabelValues(r.Method, strconv.Itoa(writer.StatusCode())).Observe(time.Since(start).Seconds())
		})
	}
}
