// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package tasktrace runs sub-tasks of a request in goroutines, reporting a span of each task to the request's scope.
//
// The scope is taken from the context at the time the task is submitted, so tasks report to the request that started them,
// whatever context the task function is given.
package tasktrace

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/thalia/spantrace/trace/scope"
	"github.com/thalia/spantrace/trace/tracelog"
	"golang.org/x/sync/errgroup"
)

// Group is a group of tasks, the first error cancelling the rest.
type Group struct {
	group *errgroup.Group
	ctx   context.Context
}

// WithContext creates a group running at most limit tasks at a time. Zero or negative limit means no limit.
// The returned context is cancelled when a task fails or Wait returns.
func WithContext(ctx context.Context, limit int) (*Group, context.Context) {
	group, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		group.SetLimit(limit)
	}
	return &Group{group: group, ctx: groupCtx}, groupCtx
}

// Go runs fn in a new goroutine, with the group context carrying the scope of the submitting request.
// Blocks while the number of running tasks is at the limit.
func (g *Group) Go(name string, fn func(context.Context) error) {
	sc := scope.FromContext(g.ctx)
	g.group.Go(func() error {
		return run(scope.NewContext(g.ctx, sc), sc, name, fn)
	})
}

// Wait waits for all the tasks, returning the first error.
func (g *Group) Wait() error {
	return g.group.Wait()
}

// Go runs fn in a new goroutine, not waiting for it.
// The task may outlive the request; its context is not cancelled with ctx, but carries the request scope.
// Errors are logged.
func Go(ctx context.Context, name string, fn func(context.Context) error) {
	taskCtx := scope.Detach(ctx)
	sc := scope.FromContext(taskCtx)
	go func() {
		if err := run(taskCtx, sc, name, fn); err != nil {
			log.Warnf("Task %s failed: %v", name, err)
		}
	}()
}

func run(ctx context.Context, sc *scope.Scope, name string, fn func(context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", name, r)
		}
		sc.Add(tracelog.NewCall(name, start, time.Since(start)))
	}()
	return fn(ctx)
}
