package connbinding

import "errors"

// Standard errors.
var (
	// ErrInvalidConfiguration is returned by New when the supplied
	// configuration or handlers are missing or malformed. No binding is
	// created and no state is mutated.
	ErrInvalidConfiguration = errors.New("connbinding: invalid configuration")

	// ErrAlreadyClosed is returned when an operation is attempted on a
	// binding after it has been closed.
	ErrAlreadyClosed = errors.New("connbinding: connection already closed")

	// ErrConnect wraps a synchronous transport rejection of a connect
	// attempt. Asynchronous setup failures are NOT errors; they are
	// reported as a status code on the setup event.
	ErrConnect = errors.New("connbinding: transport rejected connect")

	// ErrNotConnected is returned by Send when no live connection exists.
	ErrNotConnected = errors.New("connbinding: not connected")
)
