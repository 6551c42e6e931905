// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package traceotel sends trace logs to OpenTelemetry, and sets up the OpenTelemetry SDK.
//
// If OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT is set, then OpenTelemetry is activated automatically.
// You may set OTEL_TRACES_SAMPLER and OTEL_TRACES_SAMPLER_ARG to set the sampling type and fraction.
// You may fine-tune batch exporting parameters with OTEL_BSP_* environment variables.
// See also
//   - https://opentelemetry.io/docs/specs/otel/protocol/exporter/
//   - https://opentelemetry.io/docs/specs/otel/configuration/sdk-environment-variables/
package traceotel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/propagators/b3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const unsetFraction = float64(-32.0)

var enabled atomic.Bool

func init() {
	target := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if target == "" {
		target = os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	}
	if target == "" {
		return
	}

	if err := SetOTelGrpc(target, unsetFraction); err != nil {
		log.Errorf("OpenTelemetry not activated: %v", err)
	}
}

// Enabled tells if OpenTelemetry is enabled.
// It may be enabled automatically if OTEL_ environment variables are set.
func Enabled() bool {
	return enabled.Load()
}

// SetOTel enables/disables OpenTelemetry.
// Tracer provider can be set with an exporter and collector endpoint you need.
// Propagators of W3C trace context and B3 are set globally.
func SetOTel(enable bool, tp *sdktrace.TracerProvider) {
	enabled.Store(enable)

	if enable {
		if tp == nil {
			tp = sdktrace.NewTracerProvider()
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, b3.New(), b3.New(b3.WithInjectEncoding(b3.B3MultipleHeader))))
	} else {
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample())))
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator())
	}
}

func ensureScheme(target string) string {
	if strings.Contains(target, "://") {
		return target
	}

	// The exact scheme (grpc, https, http or even dns) is not important.
	return "http://" + target
}

// SetOTelGrpc enables OpenTelemetry.
// Activates trace export to the OTLP gRPC collector target address defined.
// Port is 4317, unless defined otherwise in provided target string.
// E.g. "http://localhost:4317".
//
// Fraction tells the fraction of spans to report, unless the parent is sampled.
//   - Zero means no sampling.
//   - Greater or equal 1 means sampling all the messages.
//   - Else the sampling fraction, e.g. 0.01 for 1%.
func SetOTelGrpc(target string, fraction float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := filepath.Base(os.Args[0])
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(name)))
	if err != nil {
		return err
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(ensureScheme(target)))
	if err != nil {
		return err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	}
	if fraction != unsetFraction { // Otherwise OTEL_TRACES_SAMPLER(_ARG) apply.
		opts = append(opts, sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(fraction))))
	}

	SetOTel(true, sdktrace.NewTracerProvider(opts...))
	return nil
}
