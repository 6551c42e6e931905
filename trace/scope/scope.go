// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package scope holds the span registry of one inbound request.
//
// A Scope is created when the request arrives and is dropped when the response is sent.
// Downstream adapters find it in the context of the call they wrap.
// If there is none, reporting is a no-op.
package scope

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/thalia/spantrace/trace/tracelog"
)

// Scope is the per-request span registry.
// It may be used by several goroutines of the same request. Methods of a nil Scope do nothing.
type Scope struct {
	start   time.Time
	toggled atomic.Bool

	mu    sync.Mutex
	spans []tracelog.Span
	route string
}

// New creates a scope of a request started at start.
func New(start time.Time) *Scope {
	return &Scope{start: start}
}

// Add appends a completed span.
// If it can be merged with the last span, that one is replaced by the merged span instead.
func (sc *Scope) Add(s tracelog.Span) {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if n := len(sc.spans); n > 0 {
		if merged, ok := tracelog.Merge(&sc.spans[n-1], s); ok {
			sc.spans[n-1] = merged
			return
		}
	}
	sc.spans = append(sc.spans, s)
}

// ReplaceLast replaces the last span. Does nothing if there are no spans yet.
func (sc *Scope) ReplaceLast(s tracelog.Span) {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if n := len(sc.spans); n > 0 {
		sc.spans[n-1] = s
	}
}

// Spans returns a copy of the spans collected so far.
// Never nil for a non-nil scope.
func (sc *Scope) Spans() []tracelog.Span {
	if sc == nil {
		return nil
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	spans := make([]tracelog.Span, len(sc.spans))
	copy(spans, sc.spans)
	return spans
}

// Len returns the number of spans collected so far.
func (sc *Scope) Len() int {
	if sc == nil {
		return 0
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.spans)
}

// SetToggle turns tracing output on for the request. It cannot be turned off.
func (sc *Scope) SetToggle() {
	if sc != nil {
		sc.toggled.Store(true)
	}
}

// IsToggled tells whether tracing output was asked for.
func (sc *Scope) IsToggled() bool {
	return sc != nil && sc.toggled.Load()
}

// SetRoute stores the identifier of the matched route, e.g. "/users/{id}".
func (sc *Scope) SetRoute(route string) {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	sc.route = route
	sc.mu.Unlock()
}

// Route returns the identifier of the matched route. Empty if no route was matched.
func (sc *Scope) Route() string {
	if sc == nil {
		return ""
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.route
}

// Start returns the time the request started.
func (sc *Scope) Start() time.Time {
	if sc == nil {
		return time.Time{}
	}
	return sc.start
}
