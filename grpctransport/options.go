package grpctransport

import (
	"github.com/joeycumines/logiface"
	"google.golang.org/grpc"
)

// transportOptions holds configuration options for Transport creation.
type transportOptions struct {
	logger   *logiface.Logger[logiface.Event]
	dialOpts []grpc.DialOption
}

// TransportOption configures a Transport instance.
type TransportOption interface {
	applyTransport(*transportOptions) error
}

// transportOptionImpl implements TransportOption.
type transportOptionImpl struct {
	applyTransportFunc func(*transportOptions) error
}

func (o *transportOptionImpl) applyTransport(opts *transportOptions) error {
	return o.applyTransportFunc(opts)
}

// WithLogger sets the structured logger. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) TransportOption {
	return &transportOptionImpl{func(opts *transportOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithDialOptions appends gRPC dial options applied to every connection the
// transport makes, before any per-connection socket options.
func WithDialOptions(dialOpts ...grpc.DialOption) TransportOption {
	return &transportOptionImpl{func(opts *transportOptions) error {
		opts.dialOpts = append(opts.dialOpts, dialOpts...)
		return nil
	}}
}

// resolveTransportOptions applies TransportOption instances to
// transportOptions.
func resolveTransportOptions(opts []TransportOption) (*transportOptions, error) {
	cfg := &transportOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyTransport(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
