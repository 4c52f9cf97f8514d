package store

import (
	"context"
	"sync"
)

type request struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// actor runs every read-modify-write for one document on a single goroutine, in
// submission order.
type actor struct {
	name    string
	reqs    chan request
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newActor(name string, queue int) *actor {
	a := &actor{
		name:    name,
		reqs:    make(chan request, queue),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *actor) run() {
	defer close(a.stopped)
	for {
		select {
		case <-a.quit:
			return
		case r := <-a.reqs:
			r.done <- r.fn(r.ctx)
		}
	}
}

// do submits fn and waits for its result
func (a *actor) do(ctx context.Context, fn func(context.Context) error) error {
	select {
	case <-a.quit:
		return ErrClosed
	default:
	}

	done := make(chan error, 1)
	select {
	case a.reqs <- request{ctx: ctx, fn: fn, done: done}:
	case <-a.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-a.stopped:
		select {
		case err := <-done:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *actor) stop() {
	a.once.Do(func() { close(a.quit) })
	<-a.stopped
}
