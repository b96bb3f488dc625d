// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package dispatch

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTimeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	t.Cleanup(cancel)
	return ctx
}

// startBridge runs the bridge on a background goroutine and registers a
// graceful shutdown cleanup.
func startBridge(t *testing.T, b *Bridge) <-chan error {
	t.Helper()
	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		_ = b.Shutdown(ctx)
	})
	return runErr
}

func testLogger(buf *bytes.Buffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithTimeField(``)),
		stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
			buf.Write(e.Bytes())
			buf.WriteByte('\n')
			return nil
		})),
	).Logger()
}

func TestBridge_ExecutesInSubmitOrder(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	startBridge(t, b)

	const total = 1000

	var order []int
	done := make(chan struct{})
	for i := 0; i < total; i++ {
		i := i
		require.NoError(t, b.Submit(func() {
			order = append(order, i)
			if i == total-1 {
				close(done)
			}
		}))
	}

	select {
	case <-done:
	case <-testTimeout(t).Done():
		t.Fatal(`timed out waiting for work items`)
	}

	require.Len(t, order, total)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestBridge_SubmitBeforeRun(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	ran := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		require.NoError(t, b.Submit(func() { ran <- i }))
	}
	assert.Equal(t, 3, b.Len())

	startBridge(t, b)

	ctx := testTimeout(t)
	for i := 0; i < 3; i++ {
		select {
		case v := <-ran:
			assert.Equal(t, i, v)
		case <-ctx.Done():
			t.Fatal(`timed out`)
		}
	}
}

func TestBridge_SubmitNilWork(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	assert.ErrorIs(t, b.Submit(nil), ErrNilWork)
}

func TestBridge_SubmitAfterShutdown(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	startBridge(t, b)

	require.NoError(t, b.Shutdown(testTimeout(t)))
	assert.ErrorIs(t, b.Submit(func() {}), ErrBridgeTerminated)
}

func TestBridge_ShutdownDrainsAcceptedWork(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	runErr := startBridge(t, b)

	// Stall the consumer so submissions queue up behind it.
	release := make(chan struct{})
	entered := make(chan struct{})
	require.NoError(t, b.Submit(func() {
		close(entered)
		<-release
	}))
	<-entered

	var ran int
	for i := 0; i < 100; i++ {
		require.NoError(t, b.Submit(func() { ran++ }))
	}

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- b.Shutdown(context.Background()) }()

	close(release)

	ctx := testTimeout(t)
	select {
	case err := <-shutdownErr:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal(`shutdown timed out`)
	}
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal(`run never returned`)
	}

	assert.Equal(t, 100, ran)
	assert.Equal(t, 0, b.Len())
}

func TestBridge_RunTwice(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	startBridge(t, b)

	// Wait for the consumer to be established before checking.
	done := make(chan struct{})
	require.NoError(t, b.Submit(func() { close(done) }))
	<-done

	assert.ErrorIs(t, b.Run(context.Background()), ErrBridgeAlreadyRunning)
}

func TestBridge_RunAfterTermination(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	startBridge(t, b)
	require.NoError(t, b.Shutdown(testTimeout(t)))

	assert.ErrorIs(t, b.Run(context.Background()), ErrBridgeTerminated)
}

func TestBridge_ReentrantRun(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	startBridge(t, b)

	result := make(chan error, 1)
	require.NoError(t, b.Submit(func() {
		result <- b.Run(context.Background())
	}))
	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrReentrantRun)
	case <-testTimeout(t).Done():
		t.Fatal(`timed out`)
	}
}

func TestBridge_IsConsumerGoroutine(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	assert.False(t, b.HasConsumer())
	assert.False(t, b.IsConsumerGoroutine())

	startBridge(t, b)

	inside := make(chan bool, 1)
	require.NoError(t, b.Submit(func() { inside <- b.IsConsumerGoroutine() }))
	select {
	case v := <-inside:
		assert.True(t, v)
	case <-testTimeout(t).Done():
		t.Fatal(`timed out`)
	}

	assert.True(t, b.HasConsumer())
	assert.False(t, b.IsConsumerGoroutine())
}

func TestBridge_ContextCancellationDrains(t *testing.T) {
	b, err := New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx) }()

	// Establish the consumer.
	started := make(chan struct{})
	require.NoError(t, b.Submit(func() { close(started) }))
	<-started

	var ran int
	for i := 0; i < 10; i++ {
		require.NoError(t, b.Submit(func() { ran++ }))
	}

	cancel()

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-testTimeout(t).Done():
		t.Fatal(`run never returned`)
	}

	// Accepted work executed despite the cancellation.
	assert.Equal(t, 10, ran)
}

func TestBridge_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	b, err := New(WithLogger(testLogger(&buf)))
	require.NoError(t, err)
	startBridge(t, b)

	done := make(chan struct{})
	require.NoError(t, b.Submit(func() { panic(`boom`) }))
	require.NoError(t, b.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-testTimeout(t).Done():
		t.Fatal(`work after panic never ran`)
	}

	assert.Contains(t, buf.String(), `work item panicked`)
	assert.Contains(t, buf.String(), `boom`)
}

func TestBridge_ShutdownIdleDiscardsQueue(t *testing.T) {
	var buf bytes.Buffer
	b, err := New(WithLogger(testLogger(&buf)))
	require.NoError(t, err)

	require.NoError(t, b.Submit(func() { t.Error(`must not run`) }))
	require.NoError(t, b.Shutdown(testTimeout(t)))

	assert.ErrorIs(t, b.Submit(func() {}), ErrBridgeTerminated)
	assert.ErrorIs(t, b.Shutdown(testTimeout(t)), ErrBridgeTerminated)
	assert.Contains(t, buf.String(), `bridge shut down before running`)
}

func TestBridge_ConcurrentProducers(t *testing.T) {
	b, err := New()
	require.NoError(t, err)
	startBridge(t, b)

	const producers = 8
	const perProducer = 200

	var total int
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				if err := b.Submit(func() { total++ }); err != nil {
					t.Errorf(`submit failed: %v`, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	done := make(chan struct{})
	require.NoError(t, b.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-testTimeout(t).Done():
		t.Fatal(`timed out`)
	}

	// total is only ever mutated on the consumer goroutine.
	result := make(chan int, 1)
	require.NoError(t, b.Submit(func() { result <- total }))
	assert.Equal(t, producers*perProducer, <-result)
}
