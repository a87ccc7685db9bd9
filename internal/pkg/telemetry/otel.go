// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package telemetry sets up tracing and metrics for lvmctl.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	prombridge "go.opentelemetry.io/contrib/bridges/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"k8s.io/component-base/tracing"
	tracingv1 "k8s.io/component-base/tracing/api/v1"
)

// Providers holds the process-wide tracer and meter providers.
type Providers struct {
	tp tracing.TracerProvider
	mp *metric.MeterProvider
}

// New creates the providers and installs them as the otel globals.
func New(ctx context.Context, opts ...Option) (*Providers, error) {
	cfg := newConfig(opts)

	mp, err := newMeterProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	tp, err := newTracerProvider(ctx, cfg)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return &Providers{tp: tp, mp: mp}, nil
}

// newTracerProvider returns an OTLP provider when both an endpoint and a
// sample rate are set, and a noop provider otherwise.
func newTracerProvider(ctx context.Context, cfg config) (tracing.TracerProvider, error) {
	if cfg.endpoint == "" || cfg.traceSampleRate <= 0 {
		return tracing.NewNoopTracerProvider(), nil
	}
	otlpCfg := &tracingv1.TracingConfiguration{
		Endpoint:               &cfg.endpoint,
		SamplingRatePerMillion: &cfg.traceSampleRate,
	}
	tp, err := tracing.NewProvider(ctx, otlpCfg, []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}, newResourceOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	return tp, nil
}

// newMeterProvider bridges the prometheus registry into otel and attaches
// the selected exporter.
func newMeterProvider(ctx context.Context, cfg config) (*metric.MeterProvider, error) {
	res, err := resource.New(ctx, newResourceOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	opts := []metric.Option{metric.WithResource(res)}
	bridge := prombridge.NewMetricProducer(prombridge.WithGatherer(cfg.gatherer))

	switch cfg.metrics {
	case None:
	case Console:
		exp, err := stdoutmetric.New(
			stdoutmetric.WithWriter(cfg.out),
			stdoutmetric.WithTemporalitySelector(func(metric.InstrumentKind) metricdata.Temporality {
				return metricdata.DeltaTemporality
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize console exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exp, metric.WithProducer(bridge))))
	case OTLP:
		if cfg.endpoint == "" {
			return nil, errors.New("OTLP metrics need an endpoint")
		}
		exp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithInsecure(), otlpmetricgrpc.WithEndpoint(cfg.endpoint))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OTLP gRPC exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exp, metric.WithProducer(bridge))))
	case Prometheus:
		exp, err := prometheus.New(prometheus.WithRegisterer(cfg.registerer))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Prometheus exporter: %w", err)
		}
		opts = append(opts, metric.WithReader(exp))
	default:
		return nil, fmt.Errorf("unknown metrics exporter %d", int(cfg.metrics))
	}
	return metric.NewMeterProvider(opts...), nil
}

// TracerProvider returns the tracer provider.
func (p *Providers) TracerProvider() tracing.TracerProvider {
	return p.tp
}

// MeterProvider returns the meter provider.
func (p *Providers) MeterProvider() *metric.MeterProvider {
	return p.mp
}

// Shutdown flushes pending telemetry. Metrics readers export a final time.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if p.mp != nil {
		if err := p.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown meter provider: %w", err))
		}
	}
	if p.tp != nil {
		if err := p.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown trace provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NewNoopTracerProvider creates a new no-op tracing provider.
func NewNoopTracerProvider() tracing.TracerProvider {
	return tracing.NewNoopTracerProvider()
}
