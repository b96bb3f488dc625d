package connbinding

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-connbinding/dispatch"
	"github.com/joeycumines/logiface"
)

// SetupHandler is raised at most once per connect attempt, on the consumer
// goroutine, with the transport's setup status.
type SetupHandler func(status StatusCode)

// ShutdownHandler is raised at most once, on the consumer goroutine, when
// the connection completes shutdown after a successful setup.
type ShutdownHandler func(status StatusCode)

// MessageHandler is raised on the consumer goroutine for each protocol
// message received between setup and shutdown.
type MessageHandler func(msg Message)

// Binding is the reference-counted proxy object pairing a consumer-side
// handle with a native transport connection.
//
// All exported methods except Abandoned must be called on the consumer
// goroutine of the binding's bridge. See the package documentation for the
// data access rules.
type Binding struct {
	refs refCount

	bridge    *dispatch.Bridge
	transport Transport
	cfg       Config
	logger    *logiface.Logger[logiface.Event]

	// Consumer-goroutine-only state.
	conn          Connection
	closed        bool
	connectIssued bool
	onSetup       SetupHandler
	onShutdown    ShutdownHandler
	onMessage     MessageHandler

	// Weak pairing with the consumer-side wrapper, and with an opaque
	// external handle used purely for interop bookkeeping. Cleared on
	// close so any queued envelope resolution reports "abandoned".
	wrapper  WrapperRef
	external WrapperRef

	// Guards the base (construction) reference so abandonment and explicit
	// release can race without double-releasing.
	baseReleased atomic.Bool

	// Test instrumentation; invoked after the on-zero teardown.
	zeroHook func()
}

// New creates a binding in the idle state with a strong count of one (the
// construction reference). It performs no native work: connect is a
// separate, explicit operation.
//
// The shutdown and message handlers are registered for the binding's whole
// lifetime; the setup handler is registered per connect attempt. New panics
// if bridge or transport is nil, as this is a programming error.
func New(
	bridge *dispatch.Bridge,
	transport Transport,
	cfg Config,
	onShutdown ShutdownHandler,
	onMessage MessageHandler,
	opts ...Option,
) (*Binding, error) {
	if bridge == nil {
		panic("connbinding: bridge must not be nil")
	}
	if transport == nil {
		panic("connbinding: transport must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if onShutdown == nil {
		return nil, fmt.Errorf("%w: shutdown handler must not be nil", ErrInvalidConfiguration)
	}
	if onMessage == nil {
		return nil, fmt.Errorf("%w: message handler must not be nil", ErrInvalidConfiguration)
	}

	cfgOpts, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	b := &Binding{
		bridge:     bridge,
		transport:  transport,
		cfg:        cfg,
		logger:     cfgOpts.logger,
		onShutdown: onShutdown,
		onMessage:  onMessage,
		wrapper:    cfgOpts.wrapper,
		external:   cfgOpts.external,
		zeroHook:   cfgOpts.zeroHook,
	}
	b.refs.init(b.onZero)

	return b, nil
}

// Config returns the cached connection configuration.
func (b *Binding) Config() Config {
	return b.cfg
}

// Connect registers the setup handler and issues the transport connect.
// Valid only once, from the idle state: connecting while closed returns
// [ErrAlreadyClosed]; a second connect attempt is a programming error and
// panics. Callers must check the closed state first.
//
// Connect returns immediately. A synchronous transport rejection releases
// the connect-attempt reference, leaves the binding idle (so the caller may
// retry), and is returned wrapped in [ErrConnect]; otherwise the outcome
// arrives via the setup event.
func (b *Binding) Connect(onSetup SetupHandler) error {
	b.assertConsumer()

	if onSetup == nil {
		return fmt.Errorf("%w: setup handler must not be nil", ErrInvalidConfiguration)
	}
	if b.closed {
		return ErrAlreadyClosed
	}
	if b.connectIssued {
		panic("connbinding: Connect called more than once")
	}

	b.onSetup = onSetup
	b.connectIssued = true

	// The connect-attempt ticket: held from here until the FIRST of a
	// failed setup delivery or the eventual shutdown delivery. Exactly one
	// of those two sites releases it.
	b.refs.acquire()

	if err := b.transport.Connect(b.cfg, Callbacks{
		OnSetup:    b.transportSetup,
		OnShutdown: b.transportShutdown,
		OnMessage:  b.transportMessage,
	}); err != nil {
		// Rejection leaves the binding in the idle state, eligible to retry.
		b.onSetup = nil
		b.connectIssued = false
		b.refs.release()
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	return nil
}

// Close marks the binding closed and severs the pairing with the
// consumer-side handle, so queued and future envelopes resolve as
// abandoned. Idempotent; the second call is a no-op.
//
// Close does not release the connect-attempt or connection references;
// whichever terminal transport callback eventually fires does that.
func (b *Binding) Close() {
	b.assertConsumer()
	b.closeBinding()
}

// Send forwards an opaque protocol message over the live connection. It is
// the extension point for stream-level messaging.
func (b *Binding) Send(ctx context.Context, msg Message) error {
	b.assertConsumer()
	if b.closed || b.conn == nil {
		return ErrNotConnected
	}
	return b.conn.Send(ctx, msg)
}

// Abandoned is the finalize-on-abandonment path, invoked by the host
// environment's lifecycle (e.g. a GC cleanup) once it decides the
// consumer-side handle is unreachable. It may be called from any goroutine;
// the teardown is marshalled onto the consumer goroutine.
//
// A live connection is released normally (the shutdown callback is still
// expected). The base construction reference is released exactly once,
// regardless of which path ran first.
func (b *Binding) Abandoned() {
	if err := b.bridge.Submit(b.abandonedOnConsumer); err != nil {
		// No consumer goroutine remains, so nothing else can touch the
		// binding's state; tear down directly rather than leak.
		b.logger.Info().
			Err(err).
			Log(`connbinding: abandonment after bridge termination`)
		b.abandonedOnConsumer()
	}
}

func (b *Binding) abandonedOnConsumer() {
	b.logger.Info().
		Str(`host`, b.cfg.Host).
		Log(`connbinding: consumer wrapper finalized`)

	if b.conn != nil {
		// Successful connection: release it and let the eventual shutdown
		// delivery do the rest of the bookkeeping.
		conn := b.conn
		b.conn = nil
		conn.Release()
	} else if !b.closed {
		// Mid-connect or never connected: the closed flag tells the setup
		// delivery, if one is still coming, to close the connection and
		// discard the event.
		b.closeBinding()
	}

	b.releaseBase()
}

// Release explicitly drops the base construction reference, for consumers
// whose host environment has no finalization hook. Idempotent with respect
// to [Binding.Abandoned]: whichever runs first wins.
func (b *Binding) Release() {
	b.assertConsumer()
	b.releaseBase()
}

// closeBinding is the shared idempotent teardown of the consumer pairing.
func (b *Binding) closeBinding() {
	b.closed = true
	b.wrapper = nil
	b.external = nil
}

// releaseBase releases the construction reference, at most once.
func (b *Binding) releaseBase() {
	if b.baseReleased.CompareAndSwap(false, true) {
		b.refs.release()
	}
}

// resolveWrapper resolves the paired consumer-side handle. A binding
// constructed without a wrapper ref (a pure Go consumer) always resolves.
// Consumer goroutine only.
func (b *Binding) resolveWrapper() bool {
	if b.wrapper == nil {
		return true
	}
	_, ok := b.wrapper.Resolve()
	return ok
}

// assertConsumer aborts on a violation of the single-goroutine ownership of
// the binding's mutable state. When the bridge has no consumer goroutine
// (not yet running), single-goroutine access cannot be verified and is the
// caller's responsibility.
func (b *Binding) assertConsumer() {
	if b.bridge.HasConsumer() && !b.bridge.IsConsumerGoroutine() {
		panic("connbinding: binding state accessed off the consumer goroutine")
	}
}

// onZero is the refCount on-zero hook: the deterministic deallocation
// point. By the counting protocol nothing can still reference the binding,
// so clearing state here is safe from any goroutine.
func (b *Binding) onZero() {
	b.logger.Debug().
		Str(`host`, b.cfg.Host).
		Log(`connbinding: binding deallocated`)

	b.onSetup = nil
	b.onShutdown = nil
	b.onMessage = nil
	b.wrapper = nil
	b.external = nil

	if b.zeroHook != nil {
		b.zeroHook()
	}
}

// ---------------- transport callbacks (any goroutine) ----------------

// transportSetup packages the setup outcome as a single-use envelope and
// hands it to the bridge. On enqueue failure every reference the envelope
// would have carried is released here, so nothing leaks.
func (b *Binding) transportSetup(conn Connection, status StatusCode) {
	e := &setupEvent{binding: b, conn: conn, status: status}
	b.refs.acquire()
	if err := b.bridge.Submit(e.deliver); err != nil {
		b.logger.Warning().
			Err(err).
			Log(`connbinding: setup event dropped, bridge terminated`)
		if conn != nil {
			// The transport will still report shutdown for this
			// connection; the ticket is released on that path.
			conn.Close(StatusSetupAlreadyClosed)
			conn.Release()
		} else {
			b.refs.release() // connect-attempt ticket
		}
		b.refs.release() // envelope
	}
}

// transportShutdown fires only after a setup that reported a live
// connection.
func (b *Binding) transportShutdown(status StatusCode) {
	e := &shutdownEvent{binding: b, status: status}
	b.refs.acquire()
	if err := b.bridge.Submit(e.deliver); err != nil {
		b.logger.Warning().
			Err(err).
			Log(`connbinding: shutdown event dropped, bridge terminated`)
		b.refs.release() // connect-attempt ticket
		b.refs.release() // envelope
	}
}

func (b *Binding) transportMessage(msg Message) {
	e := &messageEvent{binding: b, msg: msg}
	b.refs.acquire()
	if err := b.bridge.Submit(e.deliver); err != nil {
		b.refs.release() // envelope
	}
}
