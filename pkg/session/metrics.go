// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks shared connection requests by context key,
	// method, and status class ("error" for transport failures)
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conduit_requests_total",
			Help: "Total shared connection requests by context key, method, and status class",
		},
		[]string{"context", "method", "code_class"},
	)

	// requestDuration tracks execute latency per context key, including
	// the replay of local overrides onto the pooled session
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conduit_request_duration_seconds",
			Help:    "Shared connection request duration by context key",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"context"},
	)

	// activeContexts tracks the number of live pooled contexts
	activeContexts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conduit_active_contexts",
			Help: "Number of currently pooled connection contexts",
		},
	)

	// contextRefs tracks the reference count of each pooled context
	contextRefs = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conduit_context_refs",
			Help: "Live shared connection references by context key",
		},
		[]string{"context"},
	)

	// rateLimitWaits tracks executions that had to wait on a context's
	// rate limiter
	rateLimitWaits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conduit_rate_limit_waits_total",
			Help: "Total rate-limited executions by context key",
		},
		[]string{"context"},
	)
)

func contextLabel(id int) string { return strconv.Itoa(id) }

func statusClass(status int) string {
	switch status / 100 {
	case 1:
		return "1xx"
	case 2:
		return "2xx"
	case 3:
		return "3xx"
	case 4:
		return "4xx"
	case 5:
		return "5xx"
	}
	return "other"
}
