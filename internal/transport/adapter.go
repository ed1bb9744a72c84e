package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ooni/mknet/internal/model"
	"github.com/ooni/mknet/internal/reactor"
)

// ConnAdapter adapts a model.Transport to be a net.Conn. Read and Write
// may be called from any goroutine except the reactor goroutine, since
// they synchronize with the reactor to do their job.
//
// Read enables reading from the transport only while there is a blocked
// reader and disables it again as soon as some data arrives, so the
// transport below never reads more than what we consume.
//
// The deadline methods are no-ops: the idle timeout of the transport
// (or the context passed to the code using the adapter) bounds I/O.
type ConnAdapter struct {
	reactor *reactor.Reactor
	txp     model.Transport

	mu        sync.Mutex
	cond      *sync.Cond
	buf       []byte
	err       error
	enabled   bool
	closed    bool
	sawEOF    bool
	closeOnce sync.Once
}

var _ net.Conn = &ConnAdapter{}

// NewConnAdapter creates a new ConnAdapter. This function MUST be called
// from the reactor goroutine, because it registers the error handler.
func NewConnAdapter(r *reactor.Reactor, txp model.Transport) *ConnAdapter {
	a := &ConnAdapter{reactor: r, txp: txp}
	a.cond = sync.NewCond(&a.mu)
	txp.OnError(a.onError)
	return a
}

// Read implements net.Conn.
func (a *ConnAdapter) Read(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for len(a.buf) <= 0 && a.err == nil && !a.closed {
		if !a.enabled {
			a.enabled = true
			a.reactor.CallSoon(a.enableReading)
		}
		a.cond.Wait()
	}
	if len(a.buf) > 0 {
		count := copy(p, a.buf)
		a.buf = a.buf[count:]
		return count, nil
	}
	if a.closed {
		return 0, net.ErrClosed
	}
	return 0, a.err
}

func (a *ConnAdapter) enableReading() {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if !closed {
		a.txp.OnData(a.onData)
	}
}

func (a *ConnAdapter) onData(data []byte) {
	a.txp.OnData(nil)
	a.mu.Lock()
	a.buf = append(a.buf, data...)
	a.enabled = false
	a.mu.Unlock()
	a.cond.Broadcast()
}

func (a *ConnAdapter) onError(err error) {
	a.mu.Lock()
	if errors.Is(err, io.EOF) {
		// crypto/tls compares against io.EOF using equality
		err = io.EOF
		a.sawEOF = true
	}
	if a.err == nil {
		a.err = err
	}
	a.enabled = false
	a.mu.Unlock()
	a.cond.Broadcast()
}

// SawEOF returns whether the transport reported EOF. When a TLS
// session ends and SawEOF is true, the peer did not send close_notify.
func (a *ConnAdapter) SawEOF() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sawEOF
}

// Write implements net.Conn. This method copies the data and schedules
// the write on the reactor goroutine, so it never blocks.
func (a *ConnAdapter) Write(p []byte) (int, error) {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return 0, net.ErrClosed
	}
	data := append([]byte{}, p...)
	a.reactor.CallSoon(func() {
		a.txp.Write(data)
	})
	return len(p), nil
}

// Close implements net.Conn. It wakes up any blocked reader and
// schedules closing the underlying transport.
func (a *ConnAdapter) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.reactor.CallSoon(func() {
			a.txp.Close(nil)
		})
		a.mu.Unlock()
		a.cond.Broadcast()
	})
	return nil
}

// LocalAddr implements net.Conn.
func (a *ConnAdapter) LocalAddr() net.Addr {
	return a.txp.LocalAddr()
}

// RemoteAddr implements net.Conn.
func (a *ConnAdapter) RemoteAddr() net.Addr {
	return a.txp.RemoteAddr()
}

// SetDeadline implements net.Conn.
func (a *ConnAdapter) SetDeadline(t time.Time) error {
	return nil
}

// SetReadDeadline implements net.Conn.
func (a *ConnAdapter) SetReadDeadline(t time.Time) error {
	return nil
}

// SetWriteDeadline implements net.Conn.
func (a *ConnAdapter) SetWriteDeadline(t time.Time) error {
	return nil
}
