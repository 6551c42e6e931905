// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	log "github.com/sirupsen/logrus"
	"github.com/thalia/spantrace/trace/tracelog"
)

// Exporter receives the trace log of each request that matched a route.
// Export must not keep the request waiting for long.
type Exporter interface {
	Export(l *tracelog.TraceLog, route string)
}

// ExporterFunc is a function implementing Exporter.
type ExporterFunc func(l *tracelog.TraceLog, route string)

// Export calls f.
func (f ExporterFunc) Export(l *tracelog.TraceLog, route string) {
	f(l, route)
}

// LogExporter writes a debug log line per trace log.
type LogExporter struct{}

// Export logs the trace log summary.
func (LogExporter) Export(l *tracelog.TraceLog, route string) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	log.WithFields(log.Fields{
		"route":    route,
		"app":      l.ApplicationName,
		"duration": l.Duration,
		"spans":    len(l.Spans),
	}).Debug("Trace log")
}

func export(e Exporter, l *tracelog.TraceLog, route string) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Trace log export failed on route %s: %v", route, r)
		}
	}()
	e.Export(l, route)
}
