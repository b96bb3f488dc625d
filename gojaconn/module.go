// Package gojaconn exposes client connections to JavaScript running on a
// [goja.Runtime]. Each connection pairs a JS wrapper object with a
// [connbinding.Binding]; the wrapper is held weakly on the Go side, so a
// wrapper the script drops is finalized and its binding torn down without
// any explicit close.
//
// The goroutine running the runtime must be the consumer goroutine of the
// module's dispatch bridge: all JS invocation, and all binding state, lives
// on that goroutine.
package gojaconn

import (
	"errors"
	"time"

	"github.com/dop251/goja"
	connbinding "github.com/joeycumines/go-connbinding"
	"github.com/joeycumines/go-connbinding/dispatch"
	"github.com/joeycumines/logiface"
)

// defaultSendTimeout bounds sendProtocolMessage when [WithSendTimeout] is
// not configured. Sends run on the consumer goroutine, which must never
// block indefinitely on the network.
const defaultSendTimeout = 30 * time.Second

// Module provides client connection support for a [goja.Runtime]. Each
// Module instance is bound to a single runtime, a [dispatch.Bridge] whose
// consumer goroutine runs the runtime, and a [connbinding.Transport] that
// owns the wire protocol.
type Module struct {
	runtime     *goja.Runtime
	bridge      *dispatch.Bridge
	transport   connbinding.Transport
	logger      *logiface.Logger[logiface.Event]
	sendTimeout time.Duration
}

// New creates a new [Module] bound to the given [goja.Runtime].
//
// New panics if runtime is nil, as this is a programming error (invariant
// violation). It returns an error if option validation fails or if required
// options are missing.
//
// Both collaborators must be provided via options:
//   - [WithBridge] — the dispatch bridge consumed by the runtime's goroutine
//   - [WithTransport] — the transport that establishes connections
func New(runtime *goja.Runtime, opts ...Option) (*Module, error) {
	if runtime == nil {
		panic("gojaconn: runtime must not be nil")
	}

	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	if cfg.bridge == nil {
		return nil, errors.New("gojaconn: bridge is required, see WithBridge")
	}
	if cfg.transport == nil {
		return nil, errors.New("gojaconn: transport is required, see WithTransport")
	}
	if cfg.sendTimeout == 0 {
		cfg.sendTimeout = defaultSendTimeout
	}

	return &Module{
		runtime:     runtime,
		bridge:      cfg.bridge,
		transport:   cfg.transport,
		logger:      cfg.logger,
		sendTimeout: cfg.sendTimeout,
	}, nil
}

// Runtime returns the [goja.Runtime] this module is bound to.
func (m *Module) Runtime() *goja.Runtime {
	return m.runtime
}

// SetupExports wires the module's JS API onto the given exports object.
// This is equivalent to the setup performed by the [Require] loader but
// allows external consumers to configure exports without the require()
// mechanism.
func (m *Module) SetupExports(exports *goja.Object) {
	m.setupExports(exports)
}

// setupExports wires the module's JS API onto the given exports object.
//
// Exports:
//   - newClientConnection — creates a client connection wrapper
func (m *Module) setupExports(exports *goja.Object) {
	_ = exports.Set("newClientConnection", m.runtime.ToValue(m.jsNewClientConnection))
}
