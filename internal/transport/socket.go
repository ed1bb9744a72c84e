package transport

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/ooni/mknet/internal/errorsx"
	"github.com/ooni/mknet/internal/model"
	"github.com/ooni/mknet/internal/reactor"
)

// readBufferSize is the size of the buffer used by the reader goroutine.
const readBufferSize = 1 << 14

// SocketConfig contains optional settings for NewSocket.
type SocketConfig struct {
	// Logger is the optional logger.
	Logger model.Logger

	// Lower is the optional transport below this socket. When set, the
	// SetTimeout and ClearTimeout methods act on Lower, because the idle
	// timeout always belongs to the lowest level stream.
	Lower model.Transport

	// MapReadError optionally maps errors returned by Read before
	// they are classified. A TLS socket uses this hook to implement the
	// policy for unclean shutdowns.
	MapReadError func(err error) error
}

// Socket is a model.Transport backed by a net.Conn.
//
// Two background goroutines own the blocking Read and Write calls. The
// reader only reads after the reactor asks it to, which only happens while
// there is a data handler. The writer has at most one write in flight.
// Both post their results back to the reactor.
type Socket struct {
	Emitter

	conn    net.Conn
	reactor *reactor.Reactor
	logger  model.Logger
	lower   model.Transport
	mapErr  func(error) error
	readReq chan struct{}
	writeCh chan []byte
	done    chan struct{}

	readInFlight  bool
	readClosed    bool
	stash         [][]byte
	pendingErr    error
	outq          []byte
	writeInFlight bool
	timeout       time.Duration
	timer         *reactor.Timer
}

var _ model.Transport = &Socket{}

// NewSocket creates a new Socket owned by the given reactor. The caller
// transfers the ownership of conn to the Socket. Reading is disabled
// until you set a data handler.
func NewSocket(r *reactor.Reactor, conn net.Conn, config *SocketConfig) *Socket {
	if config == nil {
		config = &SocketConfig{}
	}
	s := &Socket{
		conn:    conn,
		reactor: r,
		logger:  model.ValidLoggerOrDefault(config.Logger),
		lower:   config.Lower,
		mapErr:  config.MapReadError,
		readReq: make(chan struct{}, 1),
		writeCh: make(chan []byte, 1),
		done:    make(chan struct{}),
	}
	s.SetReadingHook(s.readingChanged)
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Conn returns the underlying net.Conn.
func (s *Socket) Conn() net.Conn {
	return s.conn
}

func (s *Socket) readLoop() {
	buffer := make([]byte, readBufferSize)
	for {
		select {
		case <-s.readReq:
		case <-s.done:
			return
		}
		count, err := s.conn.Read(buffer)
		data := append([]byte{}, buffer[:count]...)
		s.reactor.CallSoon(func() {
			s.onReadResult(data, err)
		})
		if err != nil {
			return
		}
	}
}

func (s *Socket) writeLoop() {
	for {
		select {
		case data := <-s.writeCh:
			_, err := s.conn.Write(data)
			s.reactor.CallSoon(func() {
				s.onWriteResult(err)
			})
		case <-s.done:
			return
		}
	}
}

func (s *Socket) readingChanged(enabled bool) {
	if !enabled {
		s.rearmTimer()
		return
	}
	// deliver stashed data in a later loop turn so that
	// OnData never calls the data handler inline
	s.reactor.CallSoon(s.drainStash)
}

func (s *Socket) drainStash() {
	for !s.closePending && s.Reading() && len(s.stash) > 0 {
		data := s.stash[0]
		s.stash = s.stash[1:]
		s.EmitData(data)
	}
	s.maybeRead()
}

// maybeRead either delivers a pending read error or asks the
// reader goroutine to read, when there is a data handler.
func (s *Socket) maybeRead() {
	if s.closePending || !s.Reading() || len(s.stash) > 0 || s.readInFlight {
		return
	}
	if s.pendingErr != nil {
		if s.isEOF(s.pendingErr) && s.outputPending() {
			return // delivered after we flush
		}
		err := s.pendingErr
		s.pendingErr = nil
		s.EmitError(err)
		return
	}
	if s.readClosed {
		return
	}
	s.readInFlight = true
	s.readReq <- struct{}{}
	s.rearmTimer()
}

func (s *Socket) onReadResult(data []byte, err error) {
	s.readInFlight = false
	if s.closePending {
		return
	}
	if len(data) > 0 {
		if s.Reading() && len(s.stash) <= 0 {
			s.EmitData(data)
		} else {
			s.stash = append(s.stash, data)
		}
	}
	if err != nil {
		s.readClosed = true
		s.pendingErr = s.wrapReadError(err)
	}
	s.maybeRead()
	s.rearmTimer()
}

func (s *Socket) wrapReadError(err error) error {
	if s.mapErr != nil {
		err = s.mapErr(err)
	}
	return errorsx.NewErrWrapper(errorsx.ClassifyGenericError, errorsx.ReadOperation, err)
}

func (s *Socket) isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

func (s *Socket) outputPending() bool {
	return s.writeInFlight || len(s.outq) > 0
}

// Write implements model.Transport.
func (s *Socket) Write(data []byte) {
	if s.closePending || len(data) <= 0 {
		return
	}
	s.RecordSent(data)
	s.outq = append(s.outq, data...)
	s.maybeWrite()
}

func (s *Socket) maybeWrite() {
	if s.writeInFlight || len(s.outq) <= 0 {
		return
	}
	chunk := s.outq
	s.outq = nil
	s.writeInFlight = true
	s.writeCh <- chunk
	s.rearmTimer()
}

func (s *Socket) onWriteResult(err error) {
	s.writeInFlight = false
	if s.closePending {
		return
	}
	if err != nil {
		s.outq = nil
		s.rearmTimer()
		s.EmitError(errorsx.NewErrWrapper(errorsx.ClassifyGenericError, errorsx.WriteOperation, err))
		return
	}
	if len(s.outq) > 0 {
		s.maybeWrite()
		return
	}
	s.rearmTimer()
	s.EmitFlush()
	s.maybeRead() // possibly deliver a suppressed EOF
}

// SetTimeout implements model.Transport.
func (s *Socket) SetTimeout(timeout time.Duration) {
	if s.lower != nil {
		s.lower.SetTimeout(timeout)
		return
	}
	s.timeout = timeout
	s.rearmTimer()
}

// ClearTimeout implements model.Transport.
func (s *Socket) ClearTimeout() {
	if s.lower != nil {
		s.lower.ClearTimeout()
		return
	}
	s.timeout = 0
	s.rearmTimer()
}

// rearmTimer restarts the idle timer, which only runs while we are
// waiting for I/O to complete.
func (s *Socket) rearmTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	waiting := (s.readInFlight && s.Reading()) || s.writeInFlight
	if s.closePending || s.timeout <= 0 || !waiting {
		return
	}
	s.timer = s.reactor.CallLater(s.timeout, s.onTimeout)
}

func (s *Socket) onTimeout() {
	s.timer = nil
	if s.closePending {
		return
	}
	operation := errorsx.ReadOperation
	if s.writeInFlight {
		operation = errorsx.WriteOperation
	}
	s.logger.Debugf("%s: idle timeout after %s", s.conn.RemoteAddr().String(), s.timeout)
	s.EmitError(errorsx.NewErrWrapper(errorsx.ClassifyGenericError, operation, errorsx.ErrTimeout))
}

// Close implements model.Transport.
func (s *Socket) Close(callback func()) {
	if !s.BeginClose() {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.stash = nil
	s.outq = nil
	s.conn.Close()
	close(s.done)
	s.reactor.CallSoon(func() {
		if callback != nil {
			callback()
		}
	})
}

// LocalAddr implements model.Transport.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr implements model.Transport.
func (s *Socket) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}
