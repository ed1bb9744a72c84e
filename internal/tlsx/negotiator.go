package tlsx

//
// TLS handshake on top of a model.Transport
//

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"time"

	"github.com/ooni/mknet/internal/errorsx"
	"github.com/ooni/mknet/internal/model"
	"github.com/ooni/mknet/internal/reactor"
	"github.com/ooni/mknet/internal/transport"
)

// DefaultHandshakeTimeout is the default TLS handshake timeout.
const DefaultHandshakeTimeout = 10 * time.Second

// Options contains the per-session TLS options.
type Options struct {
	// AllowLegacyProtocols enables TLS 1.0 and TLS 1.1.
	AllowLegacyProtocols bool

	// AllowDirtyShutdown causes an EOF not preceded by the
	// close_notify alert to be reported as a clean EOF.
	AllowDirtyShutdown bool

	// NextProtos contains the OPTIONAL ALPN protocols.
	NextProtos []string

	// HandshakeTimeout is the OPTIONAL handshake timeout. If zero or
	// negative, we use DefaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

// Transport is a TLS model.Transport. Its idle timeout is the idle
// timeout of the transport below it.
type Transport struct {
	*transport.Socket
	state tls.ConnectionState
}

var _ model.Transport = &Transport{}

// ConnectionState returns the state of the TLS session.
func (t *Transport) ConnectionState() tls.ConnectionState {
	return t.state
}

// Negotiator performs TLS handshakes on top of transports.
type Negotiator struct {
	// Logger is the OPTIONAL logger.
	Logger model.Logger

	// Reactor is the MANDATORY reactor owning the transports.
	Reactor *reactor.Reactor
}

// Negotiate performs the TLS handshake on top of txp using the
// given context and options. The hostname is used both for SNI and
// for verifying the peer certificate.
//
// This method MUST be called from the reactor goroutine. The callback
// runs in the reactor goroutine. On success, the returned Transport
// owns txp. On failure, we close txp and the error is an
// *errorsx.ErrWrapper whose operation is tls_handshake.
func (n *Negotiator) Negotiate(ctx context.Context, txp model.Transport, tctx *Context,
	hostname string, options *Options, callback func(*Transport, error)) {
	if options == nil {
		options = &Options{}
	}
	logger := model.ValidLoggerOrDefault(n.Logger)
	adapter := transport.NewConnAdapter(n.Reactor, txp)
	config := tctx.newClientConfig(serverName(hostname), options)
	timeout := options.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	logger.Debugf("tls {sni=%s next=%+v}...", config.ServerName, config.NextProtos)
	start := time.Now()

	go func() {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		tlsConn := tls.Client(adapter, config)
		err := tlsConn.HandshakeContext(ctx)
		var state tls.ConnectionState
		if err == nil {
			state = tlsConn.ConnectionState()
			err = verifyPeer(state.PeerCertificates, config.RootCAs, config.ServerName)
		}
		n.Reactor.CallSoon(func() {
			elapsed := time.Since(start)
			if err != nil {
				err = errorsx.NewErrWrapper(
					errorsx.ClassifyTLSHandshakeError, errorsx.TLSHandshakeOperation, err)
				logger.Debugf("tls {sni=%s next=%+v}... %s in %s",
					config.ServerName, config.NextProtos, err, elapsed)
				adapter.Close()
				callback(nil, err)
				return
			}
			logger.Debugf("tls {sni=%s next=%+v}... ok in %s {next=%s cipher=%s v=%s}",
				config.ServerName, config.NextProtos, elapsed, state.NegotiatedProtocol,
				TLSCipherSuiteString(state.CipherSuite), TLSVersionString(state.Version))
			socket := transport.NewSocket(n.Reactor, tlsConn, &transport.SocketConfig{
				Logger:       logger,
				Lower:        txp,
				MapReadError: newDirtyShutdownMapper(adapter, options.AllowDirtyShutdown),
			})
			tlsTxp := &Transport{Socket: socket, state: state}
			n.Reactor.CallSoon(tlsTxp.EmitConnect)
			callback(tlsTxp, nil)
		})
	}()
}

// verifyPeer checks the peer in this order: the certificate chain, the
// presence of a certificate, and the hostname.
func verifyPeer(certs []*x509.Certificate, roots *x509.CertPool, hostname string) error {
	if len(certs) > 0 {
		intermediates := x509.NewCertPool()
		for _, cert := range certs[1:] {
			intermediates.AddCert(cert)
		}
		opts := x509.VerifyOptions{
			Intermediates: intermediates,
			Roots:         roots,
		}
		if _, err := certs[0].Verify(opts); err != nil {
			return err
		}
	}
	if len(certs) <= 0 {
		return errorsx.ErrSSLNoCertificate
	}
	if hostname == "" {
		return errorsx.ErrSSLMissingHostname
	}
	return certs[0].VerifyHostname(hostname)
}

// newDirtyShutdownMapper returns a function mapping the errors returned
// by reading from a TLS conn. When the transport below returned EOF to
// crypto/tls, the peer did not send close_notify.
func newDirtyShutdownMapper(adapter *transport.ConnAdapter, allowDirty bool) func(error) error {
	return func(err error) error {
		eof := errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		if !eof || !adapter.SawEOF() {
			return err
		}
		if allowDirty {
			return io.EOF
		}
		return errorsx.ErrSSLDirtyShutdown
	}
}
