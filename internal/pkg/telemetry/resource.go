// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package telemetry

import (
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"lvm-access/internal/pkg/version"
)

const service = "lvm-access"

// newResourceOptions describes the process on every span and metric.
func newResourceOptions(cfg config) []resource.Option {
	return []resource.Option{
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithOS(),
		resource.WithHost(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
			semconv.ServiceInstanceIDKey.String(cfg.serviceID),
		),
		resource.WithDetectors(version.GetInfo()),
	}
}
