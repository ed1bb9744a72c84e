// Package transport contains the building blocks of event-driven transports.
//
// An Emitter contains the state shared by every transport (handlers, the
// close-pending flag, and the recording buffers). A Socket is a transport
// backed by a net.Conn. A ConnAdapter is the opposite: it turns a transport
// back into a blocking net.Conn, so that we can run crypto/tls on top of
// any transport, including a SOCKS5 tunnel.
package transport

// Emitter is the core of every transport. The zero value is ready to use.
//
// All methods MUST be called from the reactor goroutine.
type Emitter struct {
	onConnect func()
	onData    func(data []byte)
	onFlush   func()
	onError   func(err error)

	// readingHook is called when the data handler goes from unset
	// to set or vice versa, which means enabling or disabling reads.
	readingHook func(enabled bool)

	closePending bool

	recordRecv bool
	recv       []byte
	recordSent bool
	sent       []byte
}

// SetReadingHook sets the hook called when reading is enabled or disabled
// because the data handler has been set or cleared.
func (e *Emitter) SetReadingHook(fn func(enabled bool)) {
	e.readingHook = fn
}

// OnConnect sets or clears the connect handler.
func (e *Emitter) OnConnect(fn func()) {
	e.onConnect = fn
}

// OnData sets or clears the data handler. Doing that enables or disables
// reading from the underlying stream, respectively.
func (e *Emitter) OnData(fn func(data []byte)) {
	wasReading := e.onData != nil
	e.onData = fn
	isReading := e.onData != nil
	if wasReading != isReading && e.readingHook != nil && !e.closePending {
		e.readingHook(isReading)
	}
}

// OnFlush sets or clears the flush handler.
func (e *Emitter) OnFlush(fn func()) {
	e.onFlush = fn
}

// OnError sets or clears the error handler.
func (e *Emitter) OnError(fn func(err error)) {
	e.onError = fn
}

// Reading returns whether there is a data handler.
func (e *Emitter) Reading() bool {
	return e.onData != nil
}

// ClosePending returns whether Close has been called.
func (e *Emitter) ClosePending() bool {
	return e.closePending
}

// EmitConnect calls the connect handler, if any.
func (e *Emitter) EmitConnect() {
	if e.closePending || e.onConnect == nil {
		return
	}
	e.onConnect()
}

// EmitData records the data, if requested, and then calls the
// data handler, if any.
func (e *Emitter) EmitData(data []byte) {
	if e.closePending {
		return
	}
	if e.recordRecv {
		e.recv = append(e.recv, data...)
	}
	if e.onData == nil {
		return
	}
	e.onData(data)
}

// EmitFlush calls the flush handler, if any.
func (e *Emitter) EmitFlush() {
	if e.closePending || e.onFlush == nil {
		return
	}
	e.onFlush()
}

// EmitError calls the error handler, if any.
func (e *Emitter) EmitError(err error) {
	if e.closePending || e.onError == nil {
		return
	}
	e.onError(err)
}

// RecordSent saves the data we're about to send, if requested.
func (e *Emitter) RecordSent(data []byte) {
	if e.recordSent {
		e.sent = append(e.sent, data...)
	}
}

// BeginClose sets the close-pending flag and clears all the handlers. It
// returns false if the flag was already set, in which case the caller
// should not close again.
func (e *Emitter) BeginClose() bool {
	if e.closePending {
		return false
	}
	e.closePending = true
	e.onConnect = nil
	e.onData = nil
	e.onFlush = nil
	e.onError = nil
	return true
}

// RecordReceivedData starts saving the bytes we receive.
func (e *Emitter) RecordReceivedData() {
	e.recordRecv = true
}

// DontRecordReceivedData stops saving the bytes we receive.
func (e *Emitter) DontRecordReceivedData() {
	e.recordRecv = false
}

// ReceivedData returns the bytes saved so far.
func (e *Emitter) ReceivedData() []byte {
	return e.recv
}

// RecordSentData starts saving the bytes we send.
func (e *Emitter) RecordSentData() {
	e.recordSent = true
}

// DontRecordSentData stops saving the bytes we send.
func (e *Emitter) DontRecordSentData() {
	e.recordSent = false
}

// SentData returns the bytes saved so far.
func (e *Emitter) SentData() []byte {
	return e.sent
}
