// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package lvm

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// LatencyMetric observes engine call latency.
type LatencyMetric interface {
	Observe(op string, latency time.Duration)
}

// ErrorMetric counts failed engine calls.
type ErrorMetric interface {
	Increment(op string, err error)
}

var (
	// CallDuration measures how long engine calls take.
	CallDuration LatencyMetric = &latencyAdapter{m: callLatencyHistogram}

	// CallErrors counts failed engine calls.
	CallErrors ErrorMetric = &errorAdapter{m: callErrorCounter}

	// registerMetricsOnce keeps track of metrics registration.
	registerMetricsOnce sync.Once
)

var (
	callLatencyHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lvm_engine_call_duration_seconds",
			Help:    "Distribution of the time spent in volume management engine calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	callErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lvm_engine_errors_total",
			Help: "Number of failed volume management engine calls, partitioned by operation and error code.",
		},
		[]string{"operation", "errno"},
	)
)

// RegisterMetrics ensures that the package metrics are registered.
func RegisterMetrics() {
	registerMetricsOnce.Do(func() {
		metrics.Registry.MustRegister(callLatencyHistogram)
		metrics.Registry.MustRegister(callErrorCounter)
	})
}

type latencyAdapter struct {
	m *prometheus.HistogramVec
}

func (l *latencyAdapter) Observe(op string, latency time.Duration) {
	l.m.WithLabelValues(op).Observe(latency.Seconds())
}

type errorAdapter struct {
	m *prometheus.CounterVec
}

func (a *errorAdapter) Increment(op string, err error) {
	code := "local"
	var ee *EngineError
	if errors.As(err, &ee) {
		code = strconv.Itoa(int(ee.Code))
	}
	a.m.WithLabelValues(op, code).Inc()
}
