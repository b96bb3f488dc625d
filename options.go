package connbinding

import "github.com/joeycumines/logiface"

// bindingOptions holds configuration for a [Binding] instance.
type bindingOptions struct {
	logger   *logiface.Logger[logiface.Event]
	wrapper  WrapperRef
	external WrapperRef
	zeroHook func()
}

// Option configures a [Binding] instance. Options are applied during
// construction.
type Option interface {
	applyOption(*bindingOptions) error
}

// optionFunc implements [Option] via a closure.
type optionFunc struct {
	fn func(*bindingOptions) error
}

func (o *optionFunc) applyOption(opts *bindingOptions) error {
	return o.fn(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionFunc{fn: func(opts *bindingOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithWrapperRef pairs the binding with its consumer-side wrapper object.
// The binding resolves the reference at each event delivery; a reference
// that no longer resolves suppresses the event. Bindings without a wrapper
// ref always deliver.
func WithWrapperRef(ref WrapperRef) Option {
	return &optionFunc{fn: func(opts *bindingOptions) error {
		opts.wrapper = ref
		return nil
	}}
}

// WithExternalRef pairs the binding with an opaque external handle, used
// purely for interop bookkeeping. It is severed on close alongside the
// wrapper ref.
func WithExternalRef(ref WrapperRef) Option {
	return &optionFunc{fn: func(opts *bindingOptions) error {
		opts.external = ref
		return nil
	}}
}

// withZeroHook registers test instrumentation invoked after the strong
// count reaches zero and teardown completes.
func withZeroHook(fn func()) Option {
	return &optionFunc{fn: func(opts *bindingOptions) error {
		opts.zeroHook = fn
		return nil
	}}
}

// resolveOptions applies the given options to a default [bindingOptions].
func resolveOptions(opts []Option) (*bindingOptions, error) {
	cfg := &bindingOptions{}
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
