// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package traceprom turns trace logs into Prometheus metrics, labelled by the route served.
package traceprom

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/thalia/spantrace/trace/tracelog"
)

// Buckets of the duration histograms, in milliseconds.
var Buckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000}

// Exporter records request and span durations, and the number of database queries.
type Exporter struct {
	requestDuration *prometheus.HistogramVec
	spanDuration    *prometheus.HistogramVec
	queries         *prometheus.CounterVec
}

// New creates an exporter and registers its metrics.
// If reg is nil, prometheus.DefaultRegisterer is used.
// Metrics already registered by another exporter are reused.
func New(reg prometheus.Registerer) (*Exporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	e := &Exporter{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spantrace_request_duration_ms",
				Help:    "Duration of inbound requests in milliseconds.",
				Buckets: Buckets,
			},
			[]string{"route"},
		),
		spanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spantrace_span_duration_ms",
				Help:    "Duration of downstream calls in milliseconds.",
				Buckets: Buckets,
			},
			[]string{"route", "kind", "name"},
		),
		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spantrace_queries_total",
				Help: "Total number of database queries.",
			},
			[]string{"route", "datasource"},
		),
	}

	var err error
	if e.requestDuration, err = register(reg, e.requestDuration); err != nil {
		return nil, err
	}
	if e.spanDuration, err = register(reg, e.spanDuration); err != nil {
		return nil, err
	}
	if e.queries, err = register(reg, e.queries); err != nil {
		return nil, err
	}
	return e, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Export records the trace log of a request served on route.
func (e *Exporter) Export(l *tracelog.TraceLog, route string) {
	e.requestDuration.WithLabelValues(route).Observe(float64(l.Duration))
	for _, s := range l.Spans {
		e.spanDuration.WithLabelValues(route, string(s.Kind), s.Name).Observe(float64(s.Duration))
		if s.Query != nil {
			e.queries.WithLabelValues(route, s.Query.DataSource).Add(float64(s.Query.Count))
		}
	}
}
