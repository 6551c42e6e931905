// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package traceotel

import (
	"context"
	"strconv"

	"github.com/thalia/spantrace/trace/tracelog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/thalia/spantrace/trace/traceotel"

// Attribute keys of the exported spans.
const (
	AttrApplication = attribute.Key("spantrace.application")
	AttrHost        = attribute.Key("host.name")
	AttrRoute       = attribute.Key("http.route")
	AttrKind        = attribute.Key("spantrace.kind")
	AttrMethod      = attribute.Key("http.request.method")
	AttrURL         = attribute.Key("url.full")
	AttrStatus      = attribute.Key("http.response.status_code")
	AttrDataSource  = attribute.Key("db.name")
	AttrQueries     = attribute.Key("spantrace.query.count")
	AttrBreaker     = attribute.Key("spantrace.circuit_breaker")
)

// Exporter turns trace logs into OpenTelemetry spans.
// The request becomes a server span named after the route, each span of the trace log its child.
// Nested trace logs of HTTP spans are added under the span of the call.
type Exporter struct {
	tracer trace.Tracer
}

// NewExporter creates an exporter. If tp is nil, the global tracer provider is used.
func NewExporter(tp trace.TracerProvider) *Exporter {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Exporter{tracer: tp.Tracer(instrumentationName)}
}

// Export sends the trace log.
func (e *Exporter) Export(l *tracelog.TraceLog, route string) {
	ctx, span := e.tracer.Start(context.Background(), route,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithTimestamp(l.Start()),
		trace.WithAttributes(AttrApplication.String(l.ApplicationName), AttrHost.String(l.HostName), AttrRoute.String(route)),
	)
	e.children(ctx, l)
	span.End(trace.WithTimestamp(l.Start().Add(l.Elapsed())))
}

func (e *Exporter) children(ctx context.Context, l *tracelog.TraceLog) {
	for _, s := range l.Spans {
		childCtx, span := e.tracer.Start(ctx, s.Name,
			trace.WithSpanKind(spanKind(s)),
			trace.WithTimestamp(s.Start()),
			trace.WithAttributes(attributes(s)...),
		)
		if s.HTTP != nil {
			if s.HTTP.Status == nil || *s.HTTP.Status >= 500 {
				span.SetStatus(codes.Error, statusText(s.HTTP.Status))
			}
			if nested := s.HTTP.Nested; nested != nil {
				e.nested(childCtx, nested)
			}
		}
		span.End(trace.WithTimestamp(s.Start().Add(s.Elapsed())))
	}
}

func (e *Exporter) nested(ctx context.Context, l *tracelog.TraceLog) {
	ctx, span := e.tracer.Start(ctx, l.ApplicationName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithTimestamp(l.Start()),
		trace.WithAttributes(AttrApplication.String(l.ApplicationName), AttrHost.String(l.HostName)),
	)
	e.children(ctx, l)
	span.End(trace.WithTimestamp(l.Start().Add(l.Elapsed())))
}

func spanKind(s tracelog.Span) trace.SpanKind {
	if s.Kind == tracelog.KindCall {
		return trace.SpanKindInternal
	}
	return trace.SpanKindClient
}

func statusText(status *int) string {
	if status == nil {
		return "no response"
	}
	return strconv.Itoa(*status)
}

func attributes(s tracelog.Span) []attribute.KeyValue {
	attrs := []attribute.KeyValue{AttrKind.String(string(s.Kind))}
	switch {
	case s.HTTP != nil:
		attrs = append(attrs, AttrMethod.String(s.HTTP.Method), AttrURL.String(s.HTTP.URI))
		if s.HTTP.Status != nil {
			attrs = append(attrs, AttrStatus.Int(*s.HTTP.Status))
		}
	case s.Query != nil:
		attrs = append(attrs, AttrDataSource.String(s.Query.DataSource), AttrQueries.Int(s.Query.Count))
	case s.Breaker != nil:
		attrs = append(attrs, AttrBreaker.String(s.Breaker.Breaker))
	}
	return attrs
}
