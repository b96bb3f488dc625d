// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package dispatch implements a cross-goroutine, ordered, single-consumer
// work bridge: any goroutine may enqueue a work item, and all work items
// are executed strictly in enqueue order, exactly once each, on the single
// goroutine running [Bridge.Run].
//
// The bridge is the delivery mechanism between background callback
// goroutines (e.g. transport completion callbacks) and a single consumer
// goroutine that exclusively owns some piece of mutable state. Enqueue
// failure is surfaced to the producer so it can release whatever resources
// it was about to hand off, rather than leaking them silently.
package dispatch

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// Standard errors.
var (
	// ErrBridgeAlreadyRunning is returned when Run is called on a bridge that is already running.
	ErrBridgeAlreadyRunning = errors.New("dispatch: bridge is already running")

	// ErrBridgeTerminated is returned when operations are attempted on a terminated bridge.
	ErrBridgeTerminated = errors.New("dispatch: bridge has been terminated")

	// ErrReentrantRun is returned when Run is called from the consumer goroutine itself.
	ErrReentrantRun = errors.New("dispatch: cannot call Run from within the bridge")

	// ErrNilWork is returned when Submit is called with a nil work item.
	ErrNilWork = errors.New("dispatch: work item must not be nil")
)

// Bridge state machine. Transitions are guarded by Bridge.mu; reads may be
// atomic.
const (
	stateIdle int32 = iota
	stateRunning
	stateTerminating
	stateTerminated
)

// Bridge is a multi-producer single-consumer ordered work queue.
//
// Work items submitted before Run starts are retained and executed once the
// consumer goroutine begins draining. After termination (graceful or via
// context cancellation) Submit fails, and it is the producer's
// responsibility to release anything the rejected work item carried.
type Bridge struct {
	// Prevent copying
	_ [0]func()

	state      atomic.Int32
	consumerID atomic.Uint64

	mu    sync.Mutex
	queue workQueue

	wake     chan struct{}
	done     chan struct{}
	doneOnce sync.Once

	logger *logiface.Logger[logiface.Event]
}

// New creates a new Bridge.
func New(opts ...BridgeOption) (*Bridge, error) {
	cfg, err := resolveBridgeOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Bridge{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		logger: cfg.logger,
	}, nil
}

// Submit enqueues a work item for execution on the consumer goroutine. It
// may be called from any goroutine and returns immediately.
//
// A non-nil error means the work item will NEVER execute: the bridge has
// terminated (or is terminating), and the caller must release any resource
// ownership it intended to transfer.
func (b *Bridge) Submit(work func()) error {
	if work == nil {
		return ErrNilWork
	}

	b.mu.Lock()
	if s := b.state.Load(); s == stateTerminating || s == stateTerminated {
		b.mu.Unlock()
		return ErrBridgeTerminated
	}
	b.queue.push(work)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}

	return nil
}

// Run drains and executes work items on the calling goroutine until the
// bridge terminates. Exactly one goroutine may run the bridge.
//
// Cancellation of ctx initiates termination: items already accepted by
// Submit are still drained (exactly-once execution is never violated), then
// Run returns ctx.Err(). A graceful Shutdown causes Run to return nil.
func (b *Bridge) Run(ctx context.Context) error {
	if b.IsConsumerGoroutine() {
		return ErrReentrantRun
	}

	b.mu.Lock()
	switch b.state.Load() {
	case stateIdle:
		b.state.Store(stateRunning)
	case stateRunning:
		b.mu.Unlock()
		return ErrBridgeAlreadyRunning
	default:
		b.mu.Unlock()
		return ErrBridgeTerminated
	}
	b.mu.Unlock()

	b.consumerID.Store(goroutineID())
	defer b.consumerID.Store(0)
	defer b.doneOnce.Do(func() { close(b.done) })

	defer func() {
		b.mu.Lock()
		b.state.Store(stateTerminated)
		b.mu.Unlock()
	}()

	for {
		b.drain()

		if b.state.Load() == stateTerminating {
			// Refuse new work first (state already flipped), then take the
			// stragglers accepted before the flip.
			b.drain()
			return nil
		}

		if ctx.Err() != nil {
			b.mu.Lock()
			b.state.Store(stateTerminating)
			b.mu.Unlock()
			b.drain()
			return ctx.Err()
		}

		select {
		case <-b.wake:
		case <-ctx.Done():
		}
	}
}

// drain executes queued work items until the queue is observed empty.
func (b *Bridge) drain() {
	var batch [64]func()
	for {
		b.mu.Lock()
		n := 0
		for n < len(batch) {
			item, ok := b.queue.pop()
			if !ok {
				break
			}
			batch[n] = item
			n++
		}
		b.mu.Unlock()

		if n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			b.safeExecute(batch[i])
			batch[i] = nil
		}
	}
}

// safeExecute executes a work item with panic recovery.
func (b *Bridge) safeExecute(work func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Err().
				Any(`recovered`, r).
				Log(`dispatch: work item panicked`)
		}
	}()

	work()
}

// Shutdown gracefully terminates the bridge: Submit begins failing, items
// already accepted are drained, then the consumer goroutine exits. Shutdown
// blocks until termination completes or ctx expires.
//
// Shutting down a bridge that never ran discards any queued work; callers
// holding resources tied to queued items should prefer starting the bridge
// and shutting it down gracefully.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	switch b.state.Load() {
	case stateIdle:
		b.state.Store(stateTerminated)
		if n := b.queue.len(); n != 0 {
			b.logger.Warning().
				Int(`discarded`, n).
				Log(`dispatch: bridge shut down before running`)
		}
		b.mu.Unlock()
		b.doneOnce.Do(func() { close(b.done) })
		return nil
	case stateTerminated:
		b.mu.Unlock()
		return ErrBridgeTerminated
	default:
		b.state.Store(stateTerminating)
		b.mu.Unlock()
	}

	select {
	case b.wake <- struct{}{}:
	default:
	}

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of queued work items.
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue.len()
}

// HasConsumer reports whether a consumer goroutine is currently running the
// bridge.
func (b *Bridge) HasConsumer() bool {
	return b.consumerID.Load() != 0
}

// IsConsumerGoroutine reports whether the caller is the consumer goroutine.
// It returns false when the bridge is not running.
func (b *Bridge) IsConsumerGoroutine() bool {
	id := b.consumerID.Load()
	if id == 0 {
		return false
	}
	return goroutineID() == id
}

// goroutineID returns the current goroutine's ID.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
