package connbinding

import "context"

// StatusCode is an opaque status carried by setup and shutdown events. Zero
// means success; the meaning of non-zero values belongs to the transport.
type StatusCode int32

const (
	// StatusSuccess indicates a successful setup.
	StatusSuccess StatusCode = 0

	// StatusSetupAlreadyClosed is the reason code used when tearing down a
	// connection that was established after its consumer handle had already
	// been closed or abandoned. It sits above the range transports use for
	// their own status codes.
	StatusSetupAlreadyClosed StatusCode = 1025
)

// Message is an opaque protocol message payload. Framing, header encoding,
// and message schema are owned by the transport and its peers, not by this
// package.
type Message struct {
	Payload []byte
}

// Callbacks carries the completion callbacks a [Transport] invokes as the
// connection progresses. All callbacks are invoked on unspecified
// goroutines, possibly concurrently with the consumer goroutine.
//
// The transport must invoke OnSetup exactly once per Connect. OnShutdown is
// invoked exactly once, and only after an OnSetup that reported a live
// connection. OnMessage may be invoked any number of times between setup
// and shutdown.
type Callbacks struct {
	OnSetup    func(conn Connection, status StatusCode)
	OnShutdown func(status StatusCode)
	OnMessage  func(msg Message)
}

// Transport is the external collaborator that owns the wire protocol and
// the sockets. Connect returns a non-nil error only for synchronous
// rejection (invalid configuration at the transport level, resource
// exhaustion); in that case none of the callbacks will ever fire.
type Transport interface {
	Connect(cfg Config, cb Callbacks) error
}

// Connection is a live native connection handle, yielded by a successful
// setup callback. The binding owns the initial reference and must
// eventually call Release exactly once.
//
// Close requests shutdown with a reason code; Release drops the handle's
// reference. Both are asynchronous: the eventual OnShutdown callback
// signals completion. Neither may be called concurrently with the other for
// the same connection.
type Connection interface {
	Close(reason StatusCode)
	Release()
	Send(ctx context.Context, msg Message) error
}
