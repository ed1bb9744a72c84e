package testingx

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/ooni/mknet/internal/runtimex"
)

// TLSHandler handles TLS connections. A handler should first handle the TLS handshake
// in the GetCertificate method. If GetCertificate did not return an error, and the
// handler implements [TLSConnHandler], its HandleTLSConn method will be called after
// the handshake to handle the lifecycle of the TLS conn itself.
type TLSHandler interface {
	// GetCertificate handles the TLS handshake.
	GetCertificate(ctx context.Context, tcpConn net.Conn, chi *tls.ClientHelloInfo) (*tls.Certificate, error)
}

// TLSConn is the interface assumed by an established TLS conn.
type TLSConn interface {
	ConnectionState() tls.ConnectionState
	NetConn() net.Conn
	net.Conn
}

// TLSConnHandler is the interface implemented by handlers that want to handle
// and manage the established TLS connection after the handshake.
type TLSConnHandler interface {
	HandleTLSConn(conn TLSConn)
}

// TLSServer is a TLS server useful to implement test servers.
type TLSServer struct {
	// cancel unblocks background goroutines blocked on the context contolling their lifecycle.
	cancel context.CancelFunc

	// closeOnce provides "once" semantics when closing.
	closeOnce sync.Once

	// endpoint is the endpoint where we're listening.
	endpoint string

	// handler contains the TLSHandler.
	handler TLSHandler

	// listener is the listening socket controller.
	listener net.Listener

	// maxVersion is the maximum TLS version we accept or zero.
	maxVersion uint16

	// wg waits until the listening loop has finished running.
	wg sync.WaitGroup
}

// MustNewTLSServer creates and starts a new TLSServer listening on
// localhost that executes the given action during the TLS handshake.
func MustNewTLSServer(handler TLSHandler) *TLSServer {
	return MustNewTLSServerWithMaxVersion(handler, 0)
}

// MustNewTLSServerWithMaxVersion is like MustNewTLSServer but the server
// only speaks TLS versions up to maxVersion. Zero means no limit.
func MustNewTLSServerWithMaxVersion(handler TLSHandler, maxVersion uint16) *TLSServer {
	// create a listening socket
	listener := runtimex.Try1(net.Listen("tcp", "127.0.0.1:0"))

	// create context for interrupting goroutines blocked in the background
	ctx, cancel := context.WithCancel(context.Background())

	// create the server
	srv := &TLSServer{
		cancel:     cancel,
		closeOnce:  sync.Once{},
		endpoint:   listener.Addr().String(),
		handler:    handler,
		listener:   listener,
		maxVersion: maxVersion,
		wg:         sync.WaitGroup{},
	}

	// handle TCP connections
	srv.wg.Add(1)
	go srv.mainloop(ctx)

	return srv
}

// Endpoint returns the endpoint where the server is listening.
func (p *TLSServer) Endpoint() string {
	return p.endpoint
}

// Close closes this server as soon as possible.
func (p *TLSServer) Close() (err error) {
	p.closeOnce.Do(func() {
		err = p.listener.Close()
		p.cancel()
		p.wg.Wait()
	})
	return
}

func (p *TLSServer) mainloop(ctx context.Context) {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		// create a goroutine for connection, which is overkill in general
		// but reasonable for a server designed for testing
		go p.handle(ctx, conn)
	}
}

func (p *TLSServer) handle(ctx context.Context, tcpConn net.Conn) {
	// eventually close the TLS connection
	defer tcpConn.Close()

	// create TLS configuration where the handler is responsible for continuing the handshake
	tlsConfig := &tls.Config{
		GetCertificate: func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
			return p.handler.GetCertificate(ctx, tcpConn, chi)
		},
	}
	if p.maxVersion != 0 {
		tlsConfig.MinVersion = tls.VersionTLS10
		tlsConfig.MaxVersion = p.maxVersion
	}

	// create TLS connection
	tlsConn := tls.Server(tcpConn, tlsConfig)

	// perform the TLS handshake
	if err := tlsConn.Handshake(); err != nil {
		return
	}

	// eventually close the connection
	defer tlsConn.Close()

	// optionally let the handler handle the connection
	if h, good := p.handler.(TLSConnHandler); good {
		h.HandleTLSConn(tlsConn)
	}
}

// TLSHandlerTimeout returns a [TLSHandler] that reads data and never writes
// eventually causing the client connection to timeout.
func TLSHandlerTimeout() TLSHandler {
	return &tlsHandlerTimeout{
		timeout: 300 * time.Second,
	}
}

type tlsHandlerTimeout struct {
	timeout time.Duration
}

// GetCertificate implements TLSHandler.
func (thx *tlsHandlerTimeout) GetCertificate(
	ctx context.Context, tcpConn net.Conn, chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	defer tcpConn.Close() // one way or another we want to close the TCP conn in the middle of the handshake
	select {
	case <-time.After(thx.timeout):
		return nil, errors.New("internal error")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

const (
	// TLSAlertInternalError is the alter sent on internal errors
	TLSAlertInternalError = byte(80)

	// TLSAlertUnrecognizedName is the alert sent when the name is not recognized
	TLSAlertUnrecognizedName = byte(112)
)

// TLSHandlerSendAlert sends the alert given as argument to the client.
func TLSHandlerSendAlert(alert byte) TLSHandler {
	return &tlsHandlerSendAlert{alert}
}

type tlsHandlerSendAlert struct {
	alert byte
}

// GetCertificate implements TLSHandler.
func (thx *tlsHandlerSendAlert) GetCertificate(
	ctx context.Context, tcpConn net.Conn, chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	alertdata := []byte{
		21, // alert
		3,  // version[0]
		3,  // version[1]
		0,  // length[0]
		2,  // length[1]
		2,  // fatal
		thx.alert,
	}
	_, _ = tcpConn.Write(alertdata)
	_ = tcpConn.Close() // close connection to avoid the caller trying to send another alert
	return nil, errors.New("internal error")
}

// TLSHandlerEOF closes the connection during the handshake.
func TLSHandlerEOF() TLSHandler {
	return &tlsHandlerEOF{}
}

type tlsHandlerEOF struct{}

// GetCertificate implements TLSHandler.
func (*tlsHandlerEOF) GetCertificate(ctx context.Context, tcpConn net.Conn, chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	tcpConn.Close() // close the TCP connection to force EOF during the handshake
	return nil, errors.New("internal error")
}

// TLSHandlerHandshakeAndWriteText returns a [TLSHandler] that attempts to
// complete the handshake, writes the given text, and then closes the
// connection sending the close_notify alert.
func TLSHandlerHandshakeAndWriteText(cert *tls.Certificate, text []byte) TLSHandler {
	return &tlsHandlerHandshakeAndWriteText{cert: cert, text: text}
}

var _ TLSConnHandler = &tlsHandlerHandshakeAndWriteText{}

type tlsHandlerHandshakeAndWriteText struct {
	cert *tls.Certificate
	text []byte
}

// GetCertificate implements TLSHandler.
func (thx *tlsHandlerHandshakeAndWriteText) GetCertificate(ctx context.Context, tcpConn net.Conn, chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	return thx.cert, nil
}

// HandleTLSConn implements TLSConnHandler.
func (thx *tlsHandlerHandshakeAndWriteText) HandleTLSConn(conn TLSConn) {
	_, _ = conn.Write(thx.text)
	// Note that the caller closes the connection for us and this is fine because
	// we already have an established TCP conn we want to gracefully close
}

// TLSHandlerHandshakeAndDirtyShutdown is like [TLSHandlerHandshakeAndWriteText]
// except that it closes the TCP connection without sending close_notify.
func TLSHandlerHandshakeAndDirtyShutdown(cert *tls.Certificate, text []byte) TLSHandler {
	return &tlsHandlerHandshakeAndDirtyShutdown{cert: cert, text: text}
}

var _ TLSConnHandler = &tlsHandlerHandshakeAndDirtyShutdown{}

type tlsHandlerHandshakeAndDirtyShutdown struct {
	cert *tls.Certificate
	text []byte
}

// GetCertificate implements TLSHandler.
func (thx *tlsHandlerHandshakeAndDirtyShutdown) GetCertificate(ctx context.Context, tcpConn net.Conn, chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	return thx.cert, nil
}

// HandleTLSConn implements TLSConnHandler.
func (thx *tlsHandlerHandshakeAndDirtyShutdown) HandleTLSConn(conn TLSConn) {
	_, _ = conn.Write(thx.text)
	_ = conn.NetConn().Close() // skip close_notify
}

// TLSHandlerHandshakeAndEcho returns a [TLSHandler] that completes the
// handshake and echoes back whatever it receives until EOF.
func TLSHandlerHandshakeAndEcho(cert *tls.Certificate) TLSHandler {
	return &tlsHandlerHandshakeAndEcho{cert: cert}
}

var _ TLSConnHandler = &tlsHandlerHandshakeAndEcho{}

type tlsHandlerHandshakeAndEcho struct {
	cert *tls.Certificate
}

// GetCertificate implements TLSHandler.
func (thx *tlsHandlerHandshakeAndEcho) GetCertificate(ctx context.Context, tcpConn net.Conn, chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
	return thx.cert, nil
}

// HandleTLSConn implements TLSConnHandler.
func (thx *tlsHandlerHandshakeAndEcho) HandleTLSConn(conn TLSConn) {
	_, _ = io.Copy(conn, conn)
}
