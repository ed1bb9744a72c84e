package socks5

//
// SOCKS5 tunnel state machine
//

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ooni/mknet/internal/errorsx"
	"github.com/ooni/mknet/internal/model"
	"github.com/ooni/mknet/internal/reactor"
	"github.com/ooni/mknet/internal/runtimex"
	"github.com/ooni/mknet/internal/transport"
)

// State is the state of a Tunnel.
type State int

const (
	// StateInit means we have not sent anything yet.
	StateInit = State(iota)

	// StateAuthSent means we sent the methods frame.
	StateAuthSent

	// StateAuthOK means the proxy accepted our method.
	StateAuthOK

	// StateConnectSent means we sent the CONNECT request.
	StateConnectSent

	// StateEstablished means the tunnel is ready.
	StateEstablished

	// StateFailed means the handshake failed.
	StateFailed
)

var stateNames = map[State]string{
	StateInit:        "INIT",
	StateAuthSent:    "AUTH_SENT",
	StateAuthOK:      "AUTH_OK",
	StateConnectSent: "CONNECT_SENT",
	StateEstablished: "ESTABLISHED",
	StateFailed:      "FAILED",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if name, found := stateNames[s]; found {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Client creates SOCKS5 tunnels.
type Client struct {
	// Logger is the OPTIONAL logger.
	Logger model.Logger

	// Reactor is the MANDATORY reactor owning the transports.
	Reactor *reactor.Reactor
}

// Tunnel asks the proxy at the other end of lower to connect to target.
//
// This method MUST be called from the reactor goroutine. The callback
// runs in the reactor goroutine. On success, the returned Tunnel owns
// lower. On failure, we close lower and the error is an
// *errorsx.ErrWrapper whose operation is socks5_handshake. When ctx is
// done before the handshake completes, the handshake fails with the
// context error (i.e., interrupted for a canceled context).
func (c *Client) Tunnel(ctx context.Context, lower model.Transport,
	target model.Endpoint, callback func(*Tunnel, error)) {
	runtimex.PanicIfTrue(c.Reactor == nil, "socks5: nil Reactor")
	done := make(chan struct{})
	t := &Tunnel{
		callback: callback,
		done:     done,
		logger:   model.ValidLoggerOrDefault(c.Logger),
		lower:    lower,
		reactor:  c.Reactor,
		state:    StateInit,
		target:   target,
	}
	t.start()
	go t.watch(ctx, done)
}

// Tunnel is a model.Transport proxied through a SOCKS5 proxy.
type Tunnel struct {
	transport.Emitter

	buffer   []byte
	callback func(*Tunnel, error)
	done     chan struct{}
	logger   model.Logger
	lower    model.Transport
	reactor  *reactor.Reactor
	started  time.Time
	state    State
	target   model.Endpoint
}

var _ model.Transport = &Tunnel{}

// State returns the state of the tunnel.
func (t *Tunnel) State() State {
	return t.state
}

func (t *Tunnel) start() {
	t.started = time.Now()
	t.logger.Debugf("socks5 %s...", t.target.String())
	request, err := newConnectFrame(t.target)
	if err != nil {
		// deliver the error in a later loop turn, since the
		// callback never runs before Tunnel returns
		t.state = StateFailed
		t.reactor.CallSoon(func() {
			t.fail(err)
		})
		return
	}
	t.lower.OnError(t.fail)
	t.lower.OnData(func(data []byte) {
		t.onAuthReply(data, request)
	})
	t.logger.Debugf("socks5: >> version=%d methods=[none]", version)
	t.lower.Write(newMethodsFrame())
	t.state = StateAuthSent
}

// watch fails the handshake when ctx is done before it completes.
func (t *Tunnel) watch(ctx context.Context, done <-chan struct{}) {
	select {
	case <-ctx.Done():
		t.reactor.CallSoon(func() {
			t.fail(ctx.Err())
		})
	case <-done:
	}
}

// finish stops the context watcher. It runs once, when the handshake
// delivers its outcome.
func (t *Tunnel) finish() {
	close(t.done)
}

func (t *Tunnel) onAuthReply(data, request []byte) {
	t.buffer = append(t.buffer, data...)
	if len(t.buffer) < authReplyLength {
		return // wait for more data
	}
	t.logger.Debugf("socks5: << version=%d method=%d", t.buffer[0], t.buffer[1])
	if _, err := parseAuthReply(t.buffer); err != nil {
		t.fail(err)
		return
	}
	t.buffer = t.buffer[authReplyLength:]
	t.state = StateAuthOK
	t.logger.Debugf("socks5: >> version=%d cmd=connect target=%s", version, t.target.String())
	t.lower.Write(request)
	t.state = StateConnectSent
	t.lower.OnData(t.onConnectReply)
	if len(t.buffer) > 0 {
		t.onConnectReply(nil)
	}
}

func (t *Tunnel) onConnectReply(data []byte) {
	t.buffer = append(t.buffer, data...)
	if len(t.buffer) < minConnectReplyLength {
		return // wait for more data
	}
	t.logger.Debugf("socks5: << version=%d reply=%d reserved=%d atyp=%d",
		t.buffer[0], t.buffer[1], t.buffer[2], t.buffer[3])
	reply, length, err := parseConnectReply(t.buffer)
	if err != nil {
		t.fail(err)
		return
	}
	if reply == nil {
		return // wait for more data
	}
	t.logger.Debugf("socks5: << bound=%s", reply.boundAddress())
	t.buffer = t.buffer[length:]
	t.state = StateEstablished
	t.logger.Debugf("socks5 %s... ok in %s", t.target.String(), time.Since(t.started))

	// from now on, we forward events of the lower transport and we
	// only read from it while we have a data handler
	t.lower.OnData(nil)
	t.lower.OnFlush(t.EmitFlush)
	t.lower.OnError(t.EmitError)
	t.SetReadingHook(t.readingChanged)

	t.finish()
	t.reactor.CallSoon(t.EmitConnect)
	callback := t.callback
	t.callback = nil
	callback(t, nil)
}

func (t *Tunnel) fail(err error) {
	if t.callback == nil {
		return
	}
	t.finish()
	t.state = StateFailed
	t.lower.OnData(nil)
	t.lower.OnError(nil)
	err = errorsx.NewErrWrapper(errorsx.ClassifySOCKSError, errorsx.SOCKS5HandshakeOperation, err)
	t.logger.Debugf("socks5 %s... %s in %s", t.target.String(), err, time.Since(t.started))
	t.lower.Close(nil)
	callback := t.callback
	t.callback = nil
	callback(nil, err)
}

// readingChanged delivers the bytes we received along with the
// CONNECT reply before reading again from the lower transport.
func (t *Tunnel) readingChanged(enabled bool) {
	if !enabled {
		t.lower.OnData(nil)
		return
	}
	if len(t.buffer) > 0 {
		t.reactor.CallSoon(t.drainBuffer)
		return
	}
	t.lower.OnData(t.EmitData)
}

func (t *Tunnel) drainBuffer() {
	if t.ClosePending() || !t.Reading() || len(t.buffer) <= 0 {
		return
	}
	data := t.buffer
	t.buffer = nil
	t.EmitData(data)
	if !t.ClosePending() && t.Reading() {
		t.lower.OnData(t.EmitData)
	}
}

// Write implements model.Transport.
func (t *Tunnel) Write(data []byte) {
	if t.ClosePending() || t.state != StateEstablished || len(data) <= 0 {
		return
	}
	t.RecordSent(data)
	t.lower.Write(data)
}

// Close implements model.Transport.
func (t *Tunnel) Close(callback func()) {
	if !t.BeginClose() {
		return
	}
	t.buffer = nil
	t.lower.Close(callback)
}

// SetTimeout implements model.Transport.
func (t *Tunnel) SetTimeout(timeout time.Duration) {
	t.lower.SetTimeout(timeout)
}

// ClearTimeout implements model.Transport.
func (t *Tunnel) ClearTimeout() {
	t.lower.ClearTimeout()
}

// LocalAddr implements model.Transport.
func (t *Tunnel) LocalAddr() net.Addr {
	return t.lower.LocalAddr()
}

// RemoteAddr implements model.Transport.
func (t *Tunnel) RemoteAddr() net.Addr {
	return t.lower.RemoteAddr()
}
