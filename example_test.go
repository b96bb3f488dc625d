package connbinding_test

import (
	"context"
	"fmt"

	connbinding "github.com/joeycumines/go-connbinding"
	"github.com/joeycumines/go-connbinding/dispatch"
)

// demoConn is a connection whose session has already been fully reported by
// the transport, so dropping the handle is a no-op.
type demoConn struct{}

func (demoConn) Close(reason connbinding.StatusCode) {}

func (demoConn) Release() {}

func (demoConn) Send(ctx context.Context, msg connbinding.Message) error { return nil }

// demoTransport establishes instantly, delivers a single greeting, then
// shuts down.
type demoTransport struct{}

func (t *demoTransport) Connect(cfg connbinding.Config, cb connbinding.Callbacks) error {
	go func() {
		cb.OnSetup(demoConn{}, connbinding.StatusSuccess)
		cb.OnMessage(connbinding.Message{Payload: []byte(`hello from ` + cfg.Host)})
		cb.OnShutdown(connbinding.StatusSuccess)
	}()
	return nil
}

func Example() {
	bridge, err := dispatch.New()
	if err != nil {
		panic(err)
	}
	go func() { _ = bridge.Run(context.Background()) }()

	done := make(chan struct{})

	if err := bridge.Submit(func() {
		var binding *connbinding.Binding
		binding, err := connbinding.New(
			bridge,
			&demoTransport{},
			connbinding.Config{Host: `example.com`, Port: 443},
			func(status connbinding.StatusCode) {
				fmt.Printf("shutdown: %d\n", status)
				binding.Release()
				close(done)
			},
			func(msg connbinding.Message) {
				fmt.Printf("message: %s\n", msg.Payload)
			},
		)
		if err != nil {
			panic(err)
		}
		if err := binding.Connect(func(status connbinding.StatusCode) {
			fmt.Printf("setup: %d\n", status)
		}); err != nil {
			panic(err)
		}
	}); err != nil {
		panic(err)
	}

	<-done
	_ = bridge.Shutdown(context.Background())

	// Output:
	// setup: 0
	// message: hello from example.com
	// shutdown: 0
}
