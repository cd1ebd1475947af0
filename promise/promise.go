// Package promise provides single-resolution placeholders for deferred
// resolver results and a per-execution scheduler that drains their
// continuations level by level.
//
// A resolver that cannot produce a value immediately returns a *Promise and
// settles it later, typically from a worker goroutine:
//
//	p := promise.New()
//	go func() { p.Resolve(fetch(id)) }()
//	return p
//
// The engine adopts returned promises into its scheduler and calls Drain
// between execution levels. Continuations attached before settlement run on
// the draining goroutine in attachment order; continuations attached after
// settlement run immediately with the settled outcome.
package promise

import (
	"context"
	"sync"
)

// DoubleResolveError reports a second settlement of the same promise.
// Settling twice is a programming error in the resolver.
type DoubleResolveError struct{}

func (*DoubleResolveError) Error() string { return "promise: already settled" }

// Promise is a placeholder for a value that is not yet available. It is
// settled exactly once, by Resolve or Reject, and is safe to settle from a
// goroutine other than the one draining continuations.
type Promise struct {
	mu        sync.Mutex
	sched     *Scheduler
	settled   bool
	value     any
	err       error
	callbacks []func(any, error)
}

// New creates an unscheduled promise. The engine attaches it to its
// scheduler when a resolver returns it.
func New() *Promise { return &Promise{} }

// Resolve settles the promise with a value. A second settlement returns
// *DoubleResolveError and leaves the first outcome in place.
func (p *Promise) Resolve(v any) error { return p.settle(v, nil) }

// Reject settles the promise with an error.
func (p *Promise) Reject(err error) error { return p.settle(nil, err) }

func (p *Promise) settle(v any, err error) error {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return &DoubleResolveError{}
	}
	p.settled = true
	p.value = v
	p.err = err
	cbs := p.callbacks
	p.callbacks = nil
	sched := p.sched
	p.mu.Unlock()

	if sched != nil {
		sched.settled(cbs, v, err)
		return nil
	}
	for _, cb := range cbs {
		cb(v, err)
	}
	return nil
}

// Then attaches a continuation. Before settlement it is queued and runs in
// attachment order when the promise settles; after settlement it runs
// immediately on the calling goroutine with the settled outcome.
func (p *Promise) Then(fn func(v any, err error)) {
	p.mu.Lock()
	if p.settled {
		v, err := p.value, p.err
		p.mu.Unlock()
		fn(v, err)
		return
	}
	p.callbacks = append(p.callbacks, fn)
	p.mu.Unlock()
}

// Settled reports whether the promise has been resolved or rejected.
func (p *Promise) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Scheduler tracks the pending promises of one execution and runs their
// continuations to fixpoint. It is owned by a single execution and drained
// from a single goroutine; only promise settlement may come from elsewhere.
type Scheduler struct {
	mu       sync.Mutex
	pending  int
	ready    []readyWork
	settleCh chan struct{}
}

type readyWork struct {
	cbs []func(any, error)
	v   any
	err error
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{settleCh: make(chan struct{}, 1)}
}

// NewPromise creates a promise already attached to the scheduler.
func (s *Scheduler) NewPromise() *Promise {
	p := &Promise{sched: s}
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
	return p
}

// Adopt attaches a detached promise to the scheduler so Drain waits for it.
// Adopting an already settled promise is a no-op; its continuations run
// immediately when attached.
func (s *Scheduler) Adopt(p *Promise) {
	p.mu.Lock()
	if p.settled || p.sched == s {
		p.mu.Unlock()
		return
	}
	p.sched = s
	p.mu.Unlock()

	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

func (s *Scheduler) settled(cbs []func(any, error), v any, err error) {
	s.mu.Lock()
	s.pending--
	s.ready = append(s.ready, readyWork{cbs: cbs, v: v, err: err})
	s.mu.Unlock()

	select {
	case s.settleCh <- struct{}{}:
	default:
	}
}

// Drain runs continuations until no promise attached to the scheduler
// remains pending and no continuation remains queued. It blocks while
// settlements are outstanding and returns early only when ctx is done.
func (s *Scheduler) Drain(ctx context.Context) error {
	for {
		s.mu.Lock()
		if len(s.ready) > 0 {
			batch := s.ready
			s.ready = nil
			s.mu.Unlock()
			for _, w := range batch {
				for _, cb := range w.cbs {
					cb(w.v, w.err)
				}
			}
			continue
		}
		if s.pending == 0 {
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()

		select {
		case <-s.settleCh:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
