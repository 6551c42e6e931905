// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package tracelog

import (
	"time"

	"github.com/thalia/spantrace/trace/tracecommon"
)

// Kind is the discriminator of the Span variants.
// It is used both for dispatching in memory and on the wire.
type Kind string

// Span kinds.
const (
	KindCall           Kind = "call"           // Generic downstream call, e.g. an async task.
	KindHTTP           Kind = "http"           // Outbound HTTP call.
	KindQuery          Kind = "query"          // Database statement(s).
	KindCircuitBreaker Kind = "circuitBreaker" // Call guarded by a circuit breaker.
)

func (k Kind) known() bool {
	switch k {
	case KindCall, KindHTTP, KindQuery, KindCircuitBreaker:
		return true
	}
	return false
}

// Span is a timed record of one downstream interaction.
// Exactly one of the detail pointers matching Kind is set; KindCall has none.
// Spans are values; they are not modified once reported.
type Span struct {
	Kind      Kind
	Name      string
	StartTime int64 // Milliseconds since epoch.
	Duration  int64 // Milliseconds.

	HTTP    *HTTPDetails
	Query   *QueryDetails
	Breaker *BreakerDetails
}

// HTTPDetails are the fields of a KindHTTP span.
type HTTPDetails struct {
	Method string
	URI    string

	// Status is nil if the call failed before a response was received.
	Status *int

	// Nested is the trace log the callee returned, if any.
	Nested *TraceLog
}

// QueryDetails are the fields of a KindQuery span.
type QueryDetails struct {
	Count      int
	DataSource string
}

// BreakerDetails are the fields of a KindCircuitBreaker span.
type BreakerDetails struct {
	Breaker string
}

func clampDuration(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

// NewCall creates a generic span.
func NewCall(name string, start time.Time, duration time.Duration) Span {
	return Span{Kind: KindCall, Name: name, StartTime: tracecommon.Millis(start), Duration: clampDuration(duration)}
}

// NewHTTP creates an outbound HTTP span.
// Status may be nil, if no response was received. Nested may be nil.
func NewHTTP(name string, start time.Time, duration time.Duration, method, uri string, status *int, nested *TraceLog) Span {
	s := NewCall(name, start, duration)
	s.Kind = KindHTTP
	s.HTTP = &HTTPDetails{Method: method, URI: uri, Status: status, Nested: nested}
	return s
}

// NewQuery creates a database span of count statements executed on dataSource.
// Count less than 1 is stored as 1.
func NewQuery(name string, start time.Time, duration time.Duration, count int, dataSource string) Span {
	if count < 1 {
		count = 1
	}
	s := NewCall(name, start, duration)
	s.Kind = KindQuery
	s.Query = &QueryDetails{Count: count, DataSource: dataSource}
	return s
}

// NewCircuitBreaker creates a span of a call guarded by the named breaker.
func NewCircuitBreaker(name string, start time.Time, duration time.Duration, breaker string) Span {
	s := NewCall(name, start, duration)
	s.Kind = KindCircuitBreaker
	s.Breaker = &BreakerDetails{Breaker: breaker}
	return s
}

// Start returns start time of the span.
func (s Span) Start() time.Time {
	return time.UnixMilli(s.StartTime)
}

// Elapsed returns duration of the span.
func (s Span) Elapsed() time.Duration {
	return time.Duration(s.Duration) * time.Millisecond
}

// resource returns the identity of the resource the span was recorded against.
// Only kinds with a resource identity take part in merging.
func (s Span) resource() (string, bool) {
	if s.Kind == KindQuery && s.Query != nil {
		return s.Query.DataSource, true
	}
	return "", false
}
