package connbinding

import "fmt"

// Config is the cached connection configuration, supplied at construction
// and immutable thereafter. Connect is a separate operation, so the binding
// carries the configuration until it is needed.
//
// SocketOptions and TLS are opaque to this package: they are validated and
// interpreted by the [Transport] implementation. A nil TLS means a plaintext
// connection.
type Config struct {
	Host          string
	Port          uint16
	SocketOptions any
	TLS           any
}

// UsingTLS reports whether a TLS context was supplied.
func (c *Config) UsingTLS() bool {
	return c.TLS != nil
}

// Validate checks the configuration fields this package owns. Opaque blobs
// are the transport's concern.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidConfiguration)
	}
	if c.Port == 0 {
		return fmt.Errorf("%w: port must not be zero", ErrInvalidConfiguration)
	}
	return nil
}
