// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package tracelog holds the span model and the per-request trace log.
//
// A TraceLog is assembled once, at the end of an inbound request,
// from the spans its request scope collected.
// It is carried in a response header as JSON, so that the caller may attach it to its own span of the call.
package tracelog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/thalia/spantrace/trace/tracecommon"
)

// ErrEmpty is returned by FromJSON when there is nothing to decode.
var ErrEmpty = errors.New("empty trace log")

// TraceLog is the record of one inbound request.
// Spans are in the order they were reported complete.
type TraceLog struct {
	ApplicationName string
	HostName        string
	StartTime       int64 // Milliseconds since epoch.
	Duration        int64 // Milliseconds, wall clock of the whole request.
	Spans           []Span
}

// New creates a trace log. The span slice is copied.
func New(app, host string, start time.Time, duration time.Duration, spans []Span) *TraceLog {
	l := &TraceLog{
		ApplicationName: app,
		HostName:        host,
		StartTime:       tracecommon.Millis(start),
		Duration:        clampDuration(duration),
	}
	if len(spans) > 0 {
		l.Spans = make([]Span, len(spans))
		copy(l.Spans, spans)
	}
	return l
}

// Start returns start time of the request.
func (l *TraceLog) Start() time.Time {
	return time.UnixMilli(l.StartTime)
}

// Elapsed returns duration of the request.
func (l *TraceLog) Elapsed() time.Duration {
	return time.Duration(l.Duration) * time.Millisecond
}

// ToJSON encodes the trace log. Fields not applicable are omitted.
func (l *TraceLog) ToJSON() (string, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("trace log encode: %w", err)
	}
	return string(b), nil
}

// FromJSON decodes a trace log, such as a trace header value.
// Malformed input results in an error; the caller is expected to carry on without the trace log.
func FromJSON(s string) (*TraceLog, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmpty
	}
	var l TraceLog
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		return nil, fmt.Errorf("trace log decode: %w", err)
	}
	return &l, nil
}
