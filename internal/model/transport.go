package model

//
// Transport
//

import (
	"net"
	"time"
)

// Transport is an event-driven duplex byte stream. All the methods MUST
// be called from the goroutine running the reactor that owns the
// transport and all the handlers run in such a goroutine.
//
// Passing a nil handler to any OnXXX method clears the handler. Setting
// the data handler enables reading from the underlying stream, while
// clearing it disables reading. So, a transport never buffers an
// unbounded amount of data for a caller that is not interested.
type Transport interface {
	// OnConnect sets the handler called when the transport is connected.
	// Transports are handed out once connected, so the connect event runs
	// in the first reactor iteration after the handing-out callback.
	OnConnect(fn func())

	// OnData sets the handler called when we receive data.
	OnData(fn func(data []byte))

	// OnFlush sets the handler called when the output queue is empty.
	OnFlush(fn func())

	// OnError sets the handler called on I/O errors. The transport does
	// not close itself on error: it is up to you to call Close.
	OnError(fn func(err error))

	// Write appends data to the output queue. This method never blocks.
	Write(data []byte)

	// Close closes the transport. The first call detaches the transport
	// from the underlying stream and arranges for callback to be called
	// in a subsequent reactor iteration. Subsequent calls are no-ops.
	Close(callback func())

	// SetTimeout sets the idle timeout of the lowest level stream.
	SetTimeout(timeout time.Duration)

	// ClearTimeout clears the idle timeout of the lowest level stream.
	ClearTimeout()

	// RecordReceivedData starts saving the bytes we receive.
	RecordReceivedData()

	// DontRecordReceivedData stops saving the bytes we receive.
	DontRecordReceivedData()

	// ReceivedData returns the bytes saved so far.
	ReceivedData() []byte

	// RecordSentData starts saving the bytes we send.
	RecordSentData()

	// DontRecordSentData stops saving the bytes we send.
	DontRecordSentData()

	// SentData returns the bytes saved so far.
	SentData() []byte

	// LocalAddr returns the local address.
	LocalAddr() net.Addr

	// RemoteAddr returns the remote address.
	RemoteAddr() net.Addr
}
