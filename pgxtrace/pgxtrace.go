// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package pgxtrace reports PostgreSQL statements executed by pgx as query spans.
//
// Statements run back-to-back on the same data source are merged into one span, counting the statements.
//
//	cfg, _ := pgx.ParseConfig(dsn)
//	pgxtrace.New("orders").Attach(cfg)
//	conn, _ := pgx.ConnectConfig(ctx, cfg)
//	conn.Exec(r.Context(), "...") // Reported to the scope of request r.
package pgxtrace

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"github.com/thalia/spantrace/trace/scope"
	"github.com/thalia/spantrace/trace/tracelog"
)

// Tracer implements pgx.QueryTracer and pgx.BatchTracer.
type Tracer struct {
	dataSource string
	spanName   string
	now        func() time.Time
}

var (
	_ pgx.QueryTracer = (*Tracer)(nil)
	_ pgx.BatchTracer = (*Tracer)(nil)
)

type startKey struct{}

type start struct {
	at    time.Time
	count int
}

// New creates a tracer of the named data source. Spans are named "<dataSource>-DataSource".
func New(dataSource string) *Tracer {
	return &Tracer{dataSource: dataSource, spanName: dataSource + "-DataSource", now: time.Now}
}

// Attach sets the tracer on the connection config.
func (t *Tracer) Attach(cfg *pgx.ConnConfig) {
	cfg.Tracer = t
}

// TraceQueryStart stores the start time of the statement in the returned context.
func (t *Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	if scope.FromContext(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, startKey{}, start{at: t.now(), count: 1})
}

// TraceQueryEnd reports the statement.
func (t *Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	t.report(ctx, data.Err)
}

// TraceBatchStart stores the start time and size of the batch in the returned context.
func (t *Tracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	if scope.FromContext(ctx) == nil {
		return ctx
	}
	count := 1
	if data.Batch != nil && data.Batch.Len() > 0 {
		count = data.Batch.Len()
	}
	return context.WithValue(ctx, startKey{}, start{at: t.now(), count: count})
}

// TraceBatchQuery does nothing, the batch is reported as a whole.
func (t *Tracer) TraceBatchQuery(context.Context, *pgx.Conn, pgx.TraceBatchQueryData) {}

// TraceBatchEnd reports the batch.
func (t *Tracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	t.report(ctx, data.Err)
}

func (t *Tracer) report(ctx context.Context, err error) {
	s, ok := ctx.Value(startKey{}).(start)
	if !ok {
		return
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			log.Debugf("%s: statement failed: %s %s", t.spanName, pgErr.Code, pgErr.Message)
		}
	}
	scope.AddSpan(ctx, tracelog.NewQuery(t.spanName, s.at, t.now().Sub(s.at), s.count, t.dataSource))
}
