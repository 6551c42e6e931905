// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package circuittrace runs calls through named circuit breakers, reporting a span of each call.
package circuittrace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rubyist/circuitbreaker"
	log "github.com/sirupsen/logrus"
	"github.com/thalia/spantrace/trace/scope"
	"github.com/thalia/spantrace/trace/tracelog"
)

// DefaultThreshold is the number of consecutive failures tripping breakers created by Guard.
const DefaultThreshold = 5

// Guard looks breakers up by name in a panel.
// Breakers not in the panel are created on first use, tripping after Threshold consecutive failures.
type Guard struct {
	panel     *circuit.Panel
	threshold int64
	mu        sync.Mutex
	now       func() time.Time
}

// New creates a guard of the breakers of panel. If panel is nil, a new one is created.
func New(panel *circuit.Panel) *Guard {
	if panel == nil {
		panel = circuit.NewPanel()
	}
	return &Guard{panel: panel, threshold: DefaultThreshold, now: time.Now}
}

// Threshold sets the number of consecutive failures tripping breakers created from now on.
func (g *Guard) Threshold(threshold int64) *Guard {
	g.threshold = threshold
	return g
}

// Breaker returns the breaker of name, creating it if needed.
func (g *Guard) Breaker(name string) *circuit.Breaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.panel.Get(name); ok {
		return cb
	}
	cb := circuit.NewConsecutiveBreaker(g.threshold)
	g.panel.Add(name, cb)
	return cb
}

// Call runs fn through the breaker of name. If timeout is non-zero, fn failing to return in time counts as a failure.
// A circuit breaker span is reported to the scope of ctx, whether fn succeeded, failed, or was not called at all due to an open breaker.
// Error of fn is returned as is; circuit.ErrBreakerOpen if the breaker is open.
func (g *Guard) Call(ctx context.Context, name string, fn func(context.Context) error, timeout time.Duration) error {
	cb := g.Breaker(name)
	start := g.now()
	err := cb.Call(func() error { return fn(ctx) }, timeout)
	scope.AddSpan(ctx, tracelog.NewCircuitBreaker(name, start, g.now().Sub(start), name))

	if errors.Is(err, circuit.ErrBreakerOpen) {
		log.Debugf("Circuit breaker %s open", name)
	}
	return err
}
