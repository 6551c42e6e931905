// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package pgxtrace

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalia/spantrace/trace/scope"
)

// fakeClock advances by step on each call.
func fakeClock(t0 time.Time, step time.Duration) func() time.Time {
	now := t0
	return func() time.Time {
		defer func() { now = now.Add(step) }()
		return now
	}
}

func exec(ctx context.Context, tr *Tracer, err error) {
	ctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: err})
}

func TestBackToBackStatementsMerge(t *testing.T) {
	assert := assert.New(t)
	t0 := time.UnixMilli(1_700_000_000_000)
	sc := scope.New(t0)
	ctx := scope.NewContext(context.Background(), sc)

	x := New("X")
	x.now = fakeClock(t0, 5*time.Millisecond)
	exec(ctx, x, nil)
	exec(ctx, x, nil)

	spans := sc.Spans()
	require.Len(t, spans, 1)
	assert.Equal("X-DataSource", spans[0].Name)
	assert.Equal(2, spans[0].Query.Count)
	assert.Equal("X", spans[0].Query.DataSource)
	assert.Equal(int64(10), spans[0].Duration)
	assert.Equal(t0.UnixMilli(), spans[0].StartTime)
}

func TestInterleavedDataSources(t *testing.T) {
	assert := assert.New(t)
	sc := scope.New(time.Now())
	ctx := scope.NewContext(context.Background(), sc)

	x, y := New("X"), New("Y")
	exec(ctx, x, nil)
	exec(ctx, y, nil)
	exec(ctx, x, nil)

	spans := sc.Spans()
	require.Len(t, spans, 3)
	assert.Equal("X", spans[0].Query.DataSource)
	assert.Equal("Y", spans[1].Query.DataSource)
	assert.Equal("X", spans[2].Query.DataSource)
}

func TestFailedStatementReported(t *testing.T) {
	sc := scope.New(time.Now())
	ctx := scope.NewContext(context.Background(), sc)
	exec(ctx, New("X"), &pgconn.PgError{Code: "23505", Message: "duplicate key"})
	exec(ctx, New("X"), errors.New("conn closed"))
	spans := sc.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, 2, spans[0].Query.Count)
}

func TestBatch(t *testing.T) {
	assert := assert.New(t)
	sc := scope.New(time.Now())
	ctx := scope.NewContext(context.Background(), sc)
	tr := New("X")

	b := &pgx.Batch{}
	b.Queue("SELECT 1")
	b.Queue("SELECT 2")
	b.Queue("SELECT 3")

	bctx := tr.TraceBatchStart(ctx, nil, pgx.TraceBatchStartData{Batch: b})
	for range 3 {
		tr.TraceBatchQuery(bctx, nil, pgx.TraceBatchQueryData{})
	}
	tr.TraceBatchEnd(bctx, nil, pgx.TraceBatchEndData{})
	exec(ctx, tr, nil)

	spans := sc.Spans()
	require.Len(t, spans, 1)
	assert.Equal(4, spans[0].Query.Count)
}

func TestNoScope(t *testing.T) {
	ctx := context.Background()
	tr := New("X")
	assert.Equal(t, ctx, tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{}))
	assert.NotPanics(t, func() { exec(ctx, tr, nil) })
}

func TestAttach(t *testing.T) {
	cfg := &pgx.ConnConfig{}
	tr := New("X")
	tr.Attach(cfg)
	assert.Same(t, tr, cfg.Tracer)
}
