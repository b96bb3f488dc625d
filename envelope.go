package connbinding

// Event envelopes are single-use messages carrying a transport callback
// outcome from an arbitrary goroutine to the consumer goroutine. Each holds
// one strong reference to the binding, acquired at creation and released
// exactly once after delivery (or by the enqueue-failure paths in
// binding.go). Envelopes are never reused or duplicated.

type setupEvent struct {
	binding *Binding
	conn    Connection
	status  StatusCode
}

// deliver runs on the consumer goroutine. Exactly one of "store the
// connection and raise the setup event" or "close the connection and skip
// the event" occurs.
func (e *setupEvent) deliver() {
	b := e.binding

	// We own the initial reference of the connection, if any.
	b.conn = e.conn

	raised := false
	if !b.closed && b.resolveWrapper() {
		b.onSetup(e.status)
		raised = true
	}

	if !raised {
		// The consumer closed or vanished while the connect attempt was in
		// flight. The connection, if the transport actually established
		// one, is torn back down rather than leaked; its shutdown callback
		// still fires and completes the bookkeeping.
		b.logger.Info().
			Str(`host`, b.cfg.Host).
			Log(`connbinding: consumer gone, halting connection setup`)
		b.closeBinding()
		if b.conn != nil {
			b.conn.Close(StatusSetupAlreadyClosed)
		}
	}

	if b.conn == nil {
		// Setup failed: this is one of the two release sites of the
		// connect-attempt ticket. The other (mutually exclusive) site is
		// the shutdown delivery.
		b.refs.release()
	}

	b.refs.release() // envelope
}

type shutdownEvent struct {
	binding *Binding
	status  StatusCode
}

// deliver runs on the consumer goroutine. Shutdown only ever follows a
// setup that yielded a live connection.
func (e *shutdownEvent) deliver() {
	b := e.binding

	if !b.closed && b.resolveWrapper() {
		b.onShutdown(e.status)
	} else {
		b.logger.Info().
			Str(`host`, b.cfg.Host).
			Log(`connbinding: shutdown event suppressed, consumer gone`)
	}

	// Close just to be sure; the consumer may have closed already, in
	// which case this does nothing.
	b.closeBinding()

	if b.conn != nil {
		conn := b.conn
		b.conn = nil
		conn.Release()
	}

	// The other release site of the connect-attempt ticket.
	b.refs.release()

	b.refs.release() // envelope
}

type messageEvent struct {
	binding *Binding
	msg     Message
}

func (e *messageEvent) deliver() {
	b := e.binding

	if !b.closed && b.resolveWrapper() {
		b.onMessage(e.msg)
	}

	b.refs.release() // envelope
}
