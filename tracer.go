// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/thalia/spantrace/trace/scope"
	"github.com/thalia/spantrace/trace/tracecommon"
	"github.com/thalia/spantrace/trace/tracelog"
)

// Tracer sets up the span registry of inbound requests and sends the trace log at their end.
type Tracer struct {
	app       string
	host      string
	header    string
	exporters []Exporter
	now       func() time.Time
}

// NewTracer creates a tracer reporting application and host names of cfg.
// Tracing is toggled by the header cfg.TraceHeader, or TraceHeader if that is empty.
func NewTracer(cfg Config) *Tracer {
	host := cfg.HostName
	if host == "" {
		host = hostname()
	}
	header := cfg.TraceHeader
	if header == "" {
		header = TraceHeader
	}
	return &Tracer{app: cfg.ApplicationName, host: host, header: http.CanonicalHeaderKey(header), now: time.Now}
}

type traceHeaderKey struct{}

// traceHeaderFromContext returns the trace header name of the Tracer handling the request of ctx.
func traceHeaderFromContext(ctx context.Context) string {
	if header, ok := ctx.Value(traceHeaderKey{}).(string); ok {
		return header
	}
	return TraceHeader
}

// Exporter adds an exporter, called with the trace log of each request that matched a route.
func (t *Tracer) Exporter(e Exporter) *Tracer {
	t.exporters = append(t.exporters, e)
	return t
}

// Handler wraps h, so that downstream calls made with the request context are traced.
//
// If the request has the trace header, then the response is held back till h returns,
// and sent with the trace log and Server-Timing headers added.
// Otherwise the response is passed through as is.
func (t *Tracer) Handler(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if scope.FromContext(r.Context()) != nil { // Traced by an outer handler.
			h.ServeHTTP(w, r)
			return
		}
		sc := scope.New(t.now())
		ctx := context.WithValue(scope.NewContext(r.Context(), sc), traceHeaderKey{}, t.header)
		r = r.WithContext(ctx)
		if len(r.Header.Values(t.header)) > 0 {
			sc.SetToggle()
		}

		if !sc.IsToggled() {
			h.ServeHTTP(w, r)
			t.export(sc, nil)
			return
		}

		bw := newBufferedWriter(w)
		h.ServeHTTP(bw, r)
		l := t.traceLog(sc)
		if err := bw.flush(func(headers http.Header) { t.emit(headers, l) }); err != nil {
			log.Debugf("Response write failed: %v", err)
		}
		t.export(sc, l)
	})
}

func (t *Tracer) traceLog(sc *scope.Scope) *tracelog.TraceLog {
	start := sc.Start()
	return tracelog.New(t.app, t.host, start, t.now().Sub(start), sc.Spans())
}

func (t *Tracer) emit(headers http.Header, l *tracelog.TraceLog) {
	s, err := l.ToJSON()
	if err != nil {
		log.Warnf("Trace log not sent: %v", err)
	} else {
		tracecommon.SetHeaderStr(headers, t.header, s)
	}
	for _, entry := range l.ServerTiming() {
		headers.Add(ServerTimingHeader, entry)
	}
}

func (t *Tracer) export(sc *scope.Scope, l *tracelog.TraceLog) {
	route := sc.Route()
	if route == "" || len(t.exporters) == 0 {
		return
	}
	if l == nil {
		l = t.traceLog(sc)
	}
	for _, e := range t.exporters {
		export(e, l, route)
	}
}
