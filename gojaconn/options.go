package gojaconn

import (
	"fmt"
	"time"

	connbinding "github.com/joeycumines/go-connbinding"
	"github.com/joeycumines/go-connbinding/dispatch"
	"github.com/joeycumines/logiface"
)

// moduleOptions holds configuration for a [Module] instance.
type moduleOptions struct {
	bridge      *dispatch.Bridge
	transport   connbinding.Transport
	logger      *logiface.Logger[logiface.Event]
	sendTimeout time.Duration
}

// Option configures a [Module] instance. Options are applied during
// construction.
type Option interface {
	applyOption(*moduleOptions) error
}

// optionFunc implements [Option] via a closure.
type optionFunc struct {
	fn func(*moduleOptions) error
}

func (o *optionFunc) applyOption(opts *moduleOptions) error {
	return o.fn(opts)
}

// WithBridge sets the dispatch bridge. The goroutine consuming the bridge
// must be the one running the module's runtime. Required.
func WithBridge(bridge *dispatch.Bridge) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		opts.bridge = bridge
		return nil
	}}
}

// WithTransport sets the transport used to establish connections. Required.
func WithTransport(transport connbinding.Transport) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		opts.transport = transport
		return nil
	}}
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithSendTimeout bounds each sendProtocolMessage call. Sends execute on the
// consumer goroutine, so this caps how long a congested connection may stall
// it. Defaults to 30 seconds.
func WithSendTimeout(d time.Duration) Option {
	return &optionFunc{fn: func(opts *moduleOptions) error {
		if d <= 0 {
			return fmt.Errorf("gojaconn: send timeout must be positive, got %s", d)
		}
		opts.sendTimeout = d
		return nil
	}}
}

// resolveOptions applies the given options to a default [moduleOptions].
func resolveOptions(opts []Option) (*moduleOptions, error) {
	cfg := &moduleOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
