// SPDX-License-Identifier: Apache-2.0
// Copyright 2025 Canonical Ltd.

package tracing

import (
	"context"
	"fmt"

	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const serviceName = "mme"

type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
	InstanceId     string
	Ratio          float64
}

// NewTelemetryConfig maps the telemetry block of the MME configuration. A
// missing ratio samples every span.
func NewTelemetryConfig(t *factory.Telemetry, version, instanceId string) TelemetryConfig {
	cfg := TelemetryConfig{
		ServiceName:    serviceName,
		ServiceVersion: version,
		InstanceId:     instanceId,
		Ratio:          1.0,
	}
	if t == nil {
		return cfg
	}
	cfg.Enabled = t.Enabled
	cfg.OTLPEndpoint = t.OtlpEndpoint
	if t.Ratio != nil {
		cfg.Ratio = *t.Ratio
	}
	return cfg
}

// InitTracer sets up a global TracerProvider based on the given configuration.
// Spans started by the AS-SAP entry points follow the sampling decision of
// a remote parent when there is one.
func InitTracer(ctx context.Context, cfg TelemetryConfig) (*sdktrace.TracerProvider, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("telemetry is disabled")
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	sampler := sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Ratio))

	res, err := sdkresource.New(ctx,
		sdkresource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceInstanceIDKey.String(cfg.InstanceId),
			attribute.String("service.version", cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.InitLog.Infof("tracing to %s, ratio %v", cfg.OTLPEndpoint, cfg.Ratio)
	return tp, nil
}
