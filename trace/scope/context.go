// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package scope

import (
	"context"

	"github.com/thalia/spantrace/trace/tracelog"
)

type scopeKey struct{}

// NewContext returns a copy of ctx carrying sc.
func NewContext(ctx context.Context, sc *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, sc)
}

// FromContext returns the scope of ctx, or nil.
func FromContext(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	sc, _ := ctx.Value(scopeKey{}).(*Scope)
	return sc
}

// AddSpan adds a span to the scope of ctx, if any.
func AddSpan(ctx context.Context, s tracelog.Span) {
	FromContext(ctx).Add(s)
}

// IsToggled tells whether ctx has a scope with tracing output asked for.
func IsToggled(ctx context.Context) bool {
	return FromContext(ctx).IsToggled()
}

// Detach returns a context carrying the scope of ctx, but not its cancellation or deadline.
// Use it for work that may outlive the request, so that its span is still reported to the request's scope.
func Detach(ctx context.Context) context.Context {
	return NewContext(context.WithoutCancel(ctx), FromContext(ctx))
}
