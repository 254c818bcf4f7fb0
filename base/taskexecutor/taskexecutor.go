// Copyright 2025 The Ultraverse Authors
// This file is part of Ultraverse.
//
// Ultraverse is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Ultraverse is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Ultraverse. If not, see <http://www.gnu.org/licenses/>.

// Package taskexecutor implements a fixed-size worker pool over a single
// FIFO queue of untyped thunks, the shape spec.md §4.9/§9 asks for: a
// mutex + condition variable guarding the queue, one-shot futures for
// results, and an unbounded backlog (fairness is not guaranteed).
package taskexecutor

import (
	"sync"
)

// Future is a one-shot result slot returned by Post. Get blocks until the
// submitted function has run.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Get blocks until the task completes and returns its result.
func (f *Future[T]) Get() (T, error) {
	<-f.done
	return f.val, f.err
}

// TryGet reports whether the task has completed without blocking. ok
// is false if it hasn't resolved yet, in which case val/err are the
// zero value. Producers that need to drain a FIFO of futures in
// submission order without stalling on the first unresolved one use
// this to opportunistically reap whichever prefix has already
// finished (statelogd's writer FIFO, spec.md §5).
func (f *Future[T]) TryGet() (val T, err error, ok bool) {
	select {
	case <-f.done:
		return f.val, f.err, true
	default:
		return val, nil, false
	}
}

// Executor is a fixed pool of worker goroutines draining a single FIFO.
type Executor struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	running bool
	wg      sync.WaitGroup
}

// New starts workers goroutines pulling from a shared, unbounded queue.
// workers must be >= 1.
func New(workers int) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{running: true}
	e.cond = sync.NewCond(&e.mu)
	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go e.loop()
	}
	return e
}

func (e *Executor) loop() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && e.running {
			e.cond.Wait()
		}
		if len(e.queue) == 0 && !e.running {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		task()
	}
}

// Post enqueues fn and returns a Future that resolves with its result.
// The task runs on whichever worker picks it up first; ordering across
// tasks submitted concurrently is not guaranteed.
func Post[T any](e *Executor, fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	thunk := func() {
		f.val, f.err = fn()
		close(f.done)
	}
	e.mu.Lock()
	e.queue = append(e.queue, thunk)
	e.mu.Unlock()
	e.cond.Signal()
	return f
}

// Pending reports the current queue depth, used by producers that need
// to apply their own backpressure (statelogd's writer FIFO does; see
// spec.md §5's 128-entry / 62.5ms backoff rule).
func (e *Executor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Shutdown flips the running flag, wakes every worker, and waits for
// them to drain the queue and exit.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}
