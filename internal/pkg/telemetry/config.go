// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package telemetry

import (
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// Exporter selects where metrics are sent.
type Exporter int

const (
	// None keeps metrics in the prometheus registry only.
	None Exporter = iota
	// Console prints metrics to stdout periodically.
	Console
	// OTLP pushes metrics to the configured endpoint over gRPC.
	OTLP
	// Prometheus exposes otel instruments through the prometheus registry.
	Prometheus
)

func (e Exporter) String() string {
	switch e {
	case None:
		return "none"
	case Console:
		return "console"
	case OTLP:
		return "otlp"
	case Prometheus:
		return "prometheus"
	default:
		return "unknown"
	}
}

type config struct {
	serviceID       string
	endpoint        string
	traceSampleRate int32
	gatherer        prometheus.Gatherer
	registerer      prometheus.Registerer
	metrics         Exporter
	out             io.Writer
}

// Option configures New.
type Option func(*config)

func newConfig(opts []Option) config {
	reg := prometheus.NewRegistry()
	cfg := config{gatherer: reg, registerer: reg, out: os.Stdout}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// WithServiceInstanceID identifies this process in exported telemetry.
func WithServiceInstanceID(id string) Option {
	return func(cfg *config) {
		cfg.serviceID = id
	}
}

// WithEndpoint sets the OTLP gRPC collector address for traces and metrics.
func WithEndpoint(endpoint string) Option {
	return func(cfg *config) {
		cfg.endpoint = endpoint
	}
}

// WithTraceSampleRate sets the number of spans sampled per million. Zero
// disables tracing.
func WithTraceSampleRate(rate int) Option {
	return func(cfg *config) {
		cfg.traceSampleRate = int32(rate)
	}
}

// WithMetricsExporter selects the metrics exporter.
func WithMetricsExporter(e Exporter) Option {
	return func(cfg *config) {
		cfg.metrics = e
	}
}

// WithGatherer sets the prometheus registry bridged into otel metrics, for
// example controller-runtime's metrics.Registry.
func WithGatherer(g prometheus.Gatherer, r prometheus.Registerer) Option {
	return func(cfg *config) {
		cfg.gatherer = g
		cfg.registerer = r
	}
}

// WithConsoleOutput redirects the console exporter.
func WithConsoleOutput(w io.Writer) Option {
	return func(cfg *config) {
		cfg.out = w
	}
}
