package tlsx

//
// TLS contexts
//

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/ooni/mknet/internal/errorsx"
	"golang.org/x/net/idna"
)

// Context contains the settings shared by all the TLS sessions that
// verify peers using the same CA bundle.
type Context struct {
	// CAPath is the CA bundle path or empty for the built-in bundle.
	CAPath string

	// RootCAs is the pool we use to verify the peer's chain.
	RootCAs *x509.CertPool
}

// NewContext creates a new Context. When caPath is not empty, we load
// the PEM bundle at caPath. Otherwise, we call builtin to obtain the
// built-in pool. A nil builtin means there is no built-in pool.
//
// The returned error is always an *errorsx.ErrWrapper.
func NewContext(caPath string, builtin func() (*x509.CertPool, error)) (*Context, error) {
	pool, err := newCertPool(caPath, builtin)
	if err != nil {
		return nil, errorsx.NewErrWrapper(
			errorsx.ClassifyTLSHandshakeError, errorsx.TLSHandshakeOperation, err)
	}
	return &Context{CAPath: caPath, RootCAs: pool}, nil
}

// errNoCertificatesInBundle means the CA bundle contains no PEM certificate.
var errNoCertificatesInBundle = errors.New("no certificates found in CA bundle")

func newCertPool(caPath string, builtin func() (*x509.CertPool, error)) (*x509.CertPool, error) {
	if caPath != "" {
		data, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errorsx.ErrSSLCtxLoadVerifyLocations, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, fmt.Errorf("%w: %w", errorsx.ErrSSLCtxLoadVerifyLocations, errNoCertificatesInBundle)
		}
		return pool, nil
	}
	if builtin == nil {
		return nil, errorsx.ErrMissingCABundlePath
	}
	pool, err := builtin()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errorsx.ErrSSLCtxNew, err)
	}
	return pool, nil
}

// newClientConfig returns the *tls.Config for a client session.
//
// We disable the stdlib verification because we verify the peer
// ourselves after the handshake, to perform the checks in order.
func (c *Context) newClientConfig(hostname string, options *Options) *tls.Config {
	config := &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
		NextProtos:         options.NextProtos,
		RootCAs:            c.RootCAs,
		ServerName:         hostname,
	}
	if options.AllowLegacyProtocols {
		config.MinVersion = tls.VersionTLS10
	}
	return config
}

// serverName converts the hostname to the ASCII form we use for
// the SNI extension and for verifying the peer certificate.
func serverName(hostname string) string {
	if ascii, err := idna.Lookup.ToASCII(hostname); err == nil {
		return ascii
	}
	return hostname
}
