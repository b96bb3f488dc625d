package gojaconn

import (
	"context"
	"fmt"
	"runtime"

	"github.com/dop251/goja"
	connbinding "github.com/joeycumines/go-connbinding"
)

// jsNewClientConnection implements the JS-facing
// newClientConnection(options, onShutdown, onMessage) function.
//
// The options object must contain hostName (string) and port (1..65535),
// and may contain socketOptions and tls, which are passed through to the
// transport opaquely. Both callbacks are required:
//
//	onShutdown(errorCode)  — after the connection shuts down
//	onMessage(payload)     — per received message, payload is an ArrayBuffer
//
// The returned wrapper object has:
//
//	connect(onSetup)            — onSetup(connection, errorCode), at most once
//	close()                     — idempotent, detaches all callbacks
//	sendProtocolMessage(bytes)  — forwards an opaque payload
//
// The wrapper is referenced weakly by the Go side: dropping it without
// calling close() is valid, and the underlying connection is torn down when
// the wrapper is collected.
func (m *Module) jsNewClientConnection(call goja.FunctionCall) goja.Value {
	cfg, err := m.parseConfig(call.Argument(0))
	if err != nil {
		panic(m.runtime.NewTypeError("newClientConnection: %s", err))
	}

	onShutdown, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		panic(m.runtime.NewTypeError("newClientConnection: onShutdown must be a function"))
	}
	onMessage, ok := goja.AssertFunction(call.Argument(2))
	if !ok {
		panic(m.runtime.NewTypeError("newClientConnection: onMessage must be a function"))
	}

	wrapper := m.runtime.NewObject()
	ref := connbinding.NewWeakRef(wrapper)

	// The callback closures must not capture wrapper strongly, or it would
	// never become collectable. They resolve the weak ref instead; the
	// binding suppresses events once the wrapper is gone, so a failed
	// resolution here is unreachable in practice.
	wrapperValue := func() goja.Value {
		if v, ok := ref.Resolve(); ok {
			if obj, ok := v.(*goja.Object); ok {
				return obj
			}
		}
		return goja.Undefined()
	}

	binding, err := connbinding.New(
		m.bridge,
		m.transport,
		cfg,
		func(status connbinding.StatusCode) {
			if _, err := onShutdown(goja.Undefined(), m.runtime.ToValue(int32(status))); err != nil {
				m.logger.Warning().
					Err(err).
					Log(`gojaconn: shutdown callback threw`)
			}
		},
		func(msg connbinding.Message) {
			payload := m.runtime.ToValue(m.runtime.NewArrayBuffer(msg.Payload))
			if _, err := onMessage(goja.Undefined(), payload); err != nil {
				m.logger.Warning().
					Err(err).
					Log(`gojaconn: message callback threw`)
			}
		},
		connbinding.WithWrapperRef(ref),
		connbinding.WithLogger(m.logger),
	)
	if err != nil {
		panic(m.runtime.NewGoError(err))
	}

	_ = wrapper.Set("connect", m.runtime.ToValue(func(call goja.FunctionCall) goja.Value {
		onSetup, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(m.runtime.NewTypeError("connect: onSetup must be a function"))
		}
		err := binding.Connect(func(status connbinding.StatusCode) {
			if _, err := onSetup(goja.Undefined(), wrapperValue(), m.runtime.ToValue(int32(status))); err != nil {
				m.logger.Warning().
					Err(err).
					Log(`gojaconn: setup callback threw`)
			}
		})
		if err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return goja.Undefined()
	}))

	_ = wrapper.Set("close", m.runtime.ToValue(func(call goja.FunctionCall) goja.Value {
		binding.Close()
		return goja.Undefined()
	}))

	_ = wrapper.Set("sendProtocolMessage", m.runtime.ToValue(func(call goja.FunctionCall) goja.Value {
		payload, err := m.extractBytes(call.Argument(0))
		if err != nil {
			panic(m.runtime.NewTypeError("sendProtocolMessage: %s", err))
		}
		// Bounded: this runs on the consumer goroutine, and a congested
		// connection must not stall it indefinitely.
		ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
		defer cancel()
		if err := binding.Send(ctx, connbinding.Message{Payload: payload}); err != nil {
			panic(m.runtime.NewGoError(err))
		}
		return goja.Undefined()
	}))

	// GC abandonment path: a wrapper the script dropped without close() is
	// finalized here, releasing the binding's construction reference and any
	// live connection.
	runtime.AddCleanup(wrapper, func(b *connbinding.Binding) {
		b.Abandoned()
	}, binding)

	return wrapper
}

// parseConfig maps the JS options object onto a [connbinding.Config].
func (m *Module) parseConfig(val goja.Value) (connbinding.Config, error) {
	var cfg connbinding.Config

	obj, ok := val.(*goja.Object)
	if !ok || goja.IsUndefined(val) || goja.IsNull(val) {
		return cfg, fmt.Errorf("options must be an object, got %s", val)
	}

	hostVal := obj.Get("hostName")
	if hostVal == nil || goja.IsUndefined(hostVal) || goja.IsNull(hostVal) {
		return cfg, fmt.Errorf("options.hostName is required")
	}
	cfg.Host = hostVal.String()

	portVal := obj.Get("port")
	if portVal == nil || goja.IsUndefined(portVal) || goja.IsNull(portVal) {
		return cfg, fmt.Errorf("options.port is required")
	}
	port := portVal.ToInteger()
	if port < 1 || port > 65535 {
		return cfg, fmt.Errorf("options.port out of range: %d", port)
	}
	cfg.Port = uint16(port)

	if v := obj.Get("socketOptions"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		cfg.SocketOptions = v.Export()
	}
	if v := obj.Get("tls"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		cfg.TLS = v.Export()
	}

	return cfg, nil
}

// extractBytes extracts a []byte from a JS value that represents binary
// data. It accepts Uint8Array, ArrayBuffer, or any value that exports as
// []byte.
func (m *Module) extractBytes(val goja.Value) ([]byte, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, fmt.Errorf("expected Uint8Array or ArrayBuffer, got null/undefined")
	}

	exported := val.Export()

	// goja exports ArrayBuffer as goja.ArrayBuffer.
	if ab, ok := exported.(goja.ArrayBuffer); ok {
		return ab.Bytes(), nil
	}

	// goja exports Uint8Array as []byte.
	if b, ok := exported.([]byte); ok {
		return b, nil
	}

	var b []byte
	if err := m.runtime.ExportTo(val, &b); err == nil {
		return b, nil
	}

	return nil, fmt.Errorf("expected Uint8Array or ArrayBuffer, got %T", exported)
}
