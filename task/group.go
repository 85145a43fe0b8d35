// Package task runs background work: Group runs a set of functions
// concurrently and waits on them collectively, and Dispatcher runs posted
// functions after a delay on a single background goroutine.
package task

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Group is a set of functions which are started together and collectively
// waited upon. The first function to return an error cancels the Group's
// Context, and functions should return upon its cancellation. Group is not
// itself safe for concurrent use.
type Group struct {
	ctx      context.Context
	cancelFn context.CancelFunc
	eg       *errgroup.Group
	queued   []queued
	started  bool
}

type queued struct {
	desc string
	fn   func() error
}

// NewGroup returns an empty Group deriving from |ctx|.
func NewGroup(ctx context.Context) *Group {
	ctx, cancel := context.WithCancel(ctx)
	eg, ctx := errgroup.WithContext(ctx)
	return &Group{ctx: ctx, cancelFn: cancel, eg: eg}
}

// Context of the Group.
func (g *Group) Context() context.Context { return g.ctx }

// Cancel the Group's Context.
func (g *Group) Cancel() { g.cancelFn() }

// Queue |fn| for execution, described by |desc|. Queue panics if the Group is started.
func (g *Group) Queue(desc string, fn func() error) {
	if g.started {
		panic("Queue called after GoRun")
	}
	g.queued = append(g.queued, queued{desc: desc, fn: fn})
}

// GoRun starts all queued functions. It panics if called more than once.
func (g *Group) GoRun() {
	if g.started {
		panic("GoRun already called")
	}
	g.started = true

	for _, q := range g.queued {
		var q = q
		g.eg.Go(func() error { return errors.WithMessage(q.fn(), q.desc) })
	}
}

// Wait for all started functions, returning the first error encountered.
// It panics if GoRun has not been called.
func (g *Group) Wait() error {
	if !g.started {
		panic("Wait called before GoRun")
	}
	defer g.cancelFn()
	return g.eg.Wait()
}
