package grpctransport

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"

	bigbuff "github.com/joeycumines/go-bigbuff"
	connbinding "github.com/joeycumines/go-connbinding"
	"github.com/joeycumines/logiface"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Conn is a live session stream, implementing [connbinding.Connection].
// Sends are serialized through a dedicated goroutine; received payloads are
// delivered to the binding's message callback and additionally published to
// subscribers (see [Conn.Subscribe]).
type Conn struct {
	notifier bigbuff.Notifier
	ctx      context.Context
	cancel   context.CancelFunc
	cc       *grpc.ClientConn
	cs       grpc.ClientStream
	err      error
	sendCh   chan *wrapperspb.BytesValue
	stop     chan struct{}
	done     chan struct{}
	reason   atomic.Int64
	mu       sync.Mutex
}

func newConn(ctx context.Context, cancel context.CancelFunc, cc *grpc.ClientConn, cs grpc.ClientStream) *Conn {
	c := &Conn{
		ctx:    ctx,
		cancel: cancel,
		cc:     cc,
		cs:     cs,
		sendCh: make(chan *wrapperspb.BytesValue),
		stop:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	c.reason.Store(-1)
	return c
}

// run pumps the stream until it terminates, then reports shutdown exactly
// once. It owns the only invocation of cb.OnShutdown for this connection.
func (c *Conn) run(cb connbinding.Callbacks, logger *logiface.Logger[logiface.Event]) {
	defer close(c.done)
	defer c.cancel()

	var wg sync.WaitGroup
	wg.Add(2)

	// receive messages
	go func() {
		defer wg.Done()

		for {
			var m wrapperspb.BytesValue
			if err := c.cs.RecvMsg(&m); err != nil {
				// triggered by c.cancel, CloseSend, or a stream error
				c.fatalErr(err)
				return
			}

			msg := connbinding.Message{Payload: m.Value}
			if cb.OnMessage != nil {
				cb.OnMessage(msg)
			}
			c.notifier.PublishContext(c.ctx, nil, msg)
		}
	}()

	// send messages
	go func() {
		defer wg.Done()

		for {
			select {
			case <-c.ctx.Done():
				return

			case <-c.stop:
				if err := c.cs.CloseSend(); err != nil {
					c.fatalErr(err)
				}
				// the peer is expected to close the stream in response
				return

			case m := <-c.sendCh:
				if err := c.cs.SendMsg(m); err != nil {
					c.fatalErr(err)
					return
				}
			}
		}
	}()

	wg.Wait()

	status := c.shutdownStatus()
	logger.Debug().
		Int64(`status`, int64(status)).
		Log(`grpctransport: session stream terminated`)

	cb.OnShutdown(status)

	_ = c.cc.Close()
}

func (c *Conn) fatalErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.cancel()
	if err != nil {
		c.err = err
	} else {
		c.err = c.ctx.Err()
	}
}

// shutdownStatus prefers an explicit close reason, then maps the terminal
// stream error.
func (c *Conn) shutdownStatus() connbinding.StatusCode {
	if reason := c.reason.Load(); reason >= 0 {
		return connbinding.StatusCode(reason)
	}
	c.mu.Lock()
	err := c.err
	c.mu.Unlock()
	if err == io.EOF {
		return connbinding.StatusSuccess
	}
	return statusFromError(err)
}

// Close requests shutdown with a reason code. Asynchronous; completion is
// signalled by the shutdown callback.
func (c *Conn) Close(reason connbinding.StatusCode) {
	c.reason.Store(int64(reason))
	c.cancel()
}

// Release drops the connection gracefully: the send side is closed and the
// peer is expected to end the stream, after which the shutdown callback
// fires. Asynchronous.
func (c *Conn) Release() {
	select {
	case c.stop <- struct{}{}:
	default:
	}
}

// Send forwards an opaque payload over the stream.
func (c *Conn) Send(ctx context.Context, msg connbinding.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-c.ctx.Done():
		return net.ErrClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()

	case <-c.ctx.Done():
		return net.ErrClosed

	case c.sendCh <- wrapperspb.Bytes(msg.Payload):
		return nil
	}
}

// Done is closed once the stream has fully terminated and shutdown has
// been reported.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Subscribe accepts any `target` that is a channel which can accept
// [connbinding.Message] values, for observers outside the binding's own
// message channel. The returned cancel func MUST be called, unless `ctx`
// is cancelled.
// WARNING: Sends to `target` are blocking, and subscribers must therefore
// always receive promptly.
func (c *Conn) Subscribe(ctx context.Context, target any) context.CancelFunc {
	return c.notifier.SubscribeCancel(ctx, nil, target)
}
