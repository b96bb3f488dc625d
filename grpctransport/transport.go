// Package grpctransport realizes the connbinding transport collaborator
// over a single bidirectional gRPC stream per connection. Payloads are
// opaque byte blobs ([wrapperspb.BytesValue] on the wire); no message
// schema is owned here.
package grpctransport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	connbinding "github.com/joeycumines/go-connbinding"
	"github.com/joeycumines/logiface"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// sessionFullMethod is the bidi stream every connection rides on. The
// service is expected to speak opaque byte payloads; framing above that is
// the peers' business.
const sessionFullMethod = "/connbinding.v1.EventStream/Session"

var sessionStreamDesc = &grpc.StreamDesc{
	StreamName:    "Session",
	ClientStreams: true,
	ServerStreams: true,
}

// Transport implements [connbinding.Transport] over gRPC.
//
// Config interpretation:
//   - TLS: nil for plaintext, or a *tls.Config.
//   - SocketOptions: nil, or []grpc.DialOption applied to the dial.
//
// Anything else in those opaque slots is a synchronous rejection.
type Transport struct {
	logger   *logiface.Logger[logiface.Event]
	dialOpts []grpc.DialOption
}

// New creates a Transport.
func New(opts ...TransportOption) (*Transport, error) {
	cfg, err := resolveTransportOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Transport{
		logger:   cfg.logger,
		dialOpts: cfg.dialOpts,
	}, nil
}

// Connect validates the configuration and dials. A non-nil return is a
// synchronous rejection: no callback will ever fire. Otherwise the stream
// is established on a background goroutine and the outcome is reported via
// cb.OnSetup.
func (t *Transport) Connect(cfg connbinding.Config, cb connbinding.Callbacks) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cb.OnSetup == nil || cb.OnShutdown == nil {
		return errors.New("grpctransport: setup and shutdown callbacks are required")
	}

	creds, err := transportCredentials(cfg)
	if err != nil {
		return err
	}
	extra, err := socketDialOptions(cfg)
	if err != nil {
		return err
	}

	dialOpts := make([]grpc.DialOption, 0, 1+len(t.dialOpts)+len(extra))
	dialOpts = append(dialOpts, grpc.WithTransportCredentials(creds))
	dialOpts = append(dialOpts, t.dialOpts...)
	dialOpts = append(dialOpts, extra...)

	target := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return err
	}

	go t.establish(cc, cb)

	return nil
}

// establish opens the session stream and reports setup. Runs off the
// caller's goroutine; Connect has already returned.
func (t *Transport) establish(cc *grpc.ClientConn, cb connbinding.Callbacks) {
	ctx, cancel := context.WithCancel(context.Background())

	cs, err := cc.NewStream(ctx, sessionStreamDesc, sessionFullMethod)
	if err != nil {
		cancel()
		_ = cc.Close()
		t.logger.Info().
			Err(err).
			Log(`grpctransport: session stream setup failed`)
		cb.OnSetup(nil, statusFromError(err))
		return
	}

	conn := newConn(ctx, cancel, cc, cs)

	// Setup is reported before the stream pumps start: run is the sole
	// caller of OnShutdown, so no shutdown (or message) can ever be
	// observed ahead of the setup.
	cb.OnSetup(conn, connbinding.StatusSuccess)

	go conn.run(cb, t.logger)
}

// transportCredentials maps the opaque TLS slot of the configuration.
func transportCredentials(cfg connbinding.Config) (credentials.TransportCredentials, error) {
	switch v := cfg.TLS.(type) {
	case nil:
		return insecure.NewCredentials(), nil
	case *tls.Config:
		return credentials.NewTLS(v), nil
	default:
		return nil, fmt.Errorf("grpctransport: unsupported tls context type %T", v)
	}
}

// socketDialOptions maps the opaque socket options slot.
func socketDialOptions(cfg connbinding.Config) ([]grpc.DialOption, error) {
	switch v := cfg.SocketOptions.(type) {
	case nil:
		return nil, nil
	case []grpc.DialOption:
		return v, nil
	default:
		return nil, fmt.Errorf("grpctransport: unsupported socket options type %T", v)
	}
}
