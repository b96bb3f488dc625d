// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package dispatch

import "github.com/joeycumines/logiface"

// bridgeOptions holds configuration options for Bridge creation.
type bridgeOptions struct {
	logger *logiface.Logger[logiface.Event]
}

// BridgeOption configures a Bridge instance.
type BridgeOption interface {
	applyBridge(*bridgeOptions) error
}

// bridgeOptionImpl implements BridgeOption.
type bridgeOptionImpl struct {
	applyBridgeFunc func(*bridgeOptions) error
}

func (o *bridgeOptionImpl) applyBridge(opts *bridgeOptions) error {
	return o.applyBridgeFunc(opts)
}

// WithLogger sets the structured logger used for internal diagnostics such
// as recovered work item panics. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) BridgeOption {
	return &bridgeOptionImpl{func(opts *bridgeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// resolveBridgeOptions applies BridgeOption instances to bridgeOptions.
func resolveBridgeOptions(opts []BridgeOption) (*bridgeOptions, error) {
	cfg := &bridgeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyBridge(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
