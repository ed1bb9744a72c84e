// Package connect establishes transports to remote endpoints.
//
// The Orchestrator connects to the first working address of the
// endpoint (or of the SOCKS5 proxy), then it optionally performs the
// SOCKS5 handshake, and then it optionally performs the TLS handshake.
// Higher layers use the resulting model.Transport without knowing
// whether there is a proxy or TLS.
package connect

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/ooni/mknet/internal/errorsx"
	"github.com/ooni/mknet/internal/model"
	"github.com/ooni/mknet/internal/racer"
	"github.com/ooni/mknet/internal/reactor"
	"github.com/ooni/mknet/internal/socks5"
	"github.com/ooni/mknet/internal/tlsx"
	"github.com/ooni/mknet/internal/transport"
)

// ConnectError is the error returned by the Orchestrator. It contains
// the ConnectResult describing what happened.
type ConnectError struct {
	// Err is the underlying error, which is an *errorsx.ErrWrapper.
	Err error

	// Result is the result of the connect operation.
	Result *model.ConnectResult
}

// Error implements error.
func (e *ConnectError) Error() string {
	return e.Err.Error()
}

// Unwrap allows to inspect the underlying error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// ResultFromError returns the ConnectResult attached to err, if any.
func ResultFromError(err error) (*model.ConnectResult, bool) {
	var connectErr *ConnectError
	if errors.As(err, &connectErr) {
		return connectErr.Result, true
	}
	return nil, false
}

// ErrNoResolver means we need to resolve a domain name but the
// Orchestrator has no resolver.
var ErrNoResolver = errors.New("no resolver configured")

// Callback receives the outcome of a connect operation. On failure, the
// transport is nil and the error is a *ConnectError.
type Callback func(txp model.Transport, result *model.ConnectResult, err error)

// Orchestrator connects to remote endpoints.
//
// The zero value is invalid: you must set the Reactor. All methods
// MUST be called from the reactor goroutine and all callbacks run
// in the reactor goroutine.
type Orchestrator struct {
	// Cache is the OPTIONAL TLS context cache. When nil, we create
	// a new cache the first time we need one.
	Cache *tlsx.Cache

	// Dialer is the OPTIONAL dialer.
	Dialer model.SimpleDialer

	// Logger is the OPTIONAL logger.
	Logger model.Logger

	// Reactor is the MANDATORY reactor.
	Reactor *reactor.Reactor

	// Resolver is the OPTIONAL resolver. When nil, we can only
	// connect to IP addresses.
	Resolver model.SimpleResolver
}

// Connect connects to hostname and port using config. When hostname is
// a domain name, we use the Resolver to obtain its addresses. When
// there is a SOCKS5 proxy, we resolve and connect to the proxy instead,
// and we ask the proxy to connect to hostname and port.
func (o *Orchestrator) Connect(ctx context.Context, hostname string, port int,
	config *Config, callback Callback) {
	if config == nil {
		config = &Config{}
	}
	target := model.Endpoint{Hostname: hostname, Port: port}
	first := target
	if config.ProxyEndpoint != "" {
		proxy, err := parseEndpoint(config.ProxyEndpoint)
		if err != nil {
			o.failSoon(errorsx.NewTopLevelGenericErrWrapper(err), callback)
			return
		}
		first = proxy
	}
	o.resolve(ctx, first.Hostname, func(addrs []string, err error) {
		if err != nil {
			o.fail(err, &model.ConnectResult{ID: uuid.NewString()}, callback)
			return
		}
		o.run(ctx, newEndpoints(addrs, first.Port), target, config, callback)
	})
}

// ConnectAddresses is like Connect but uses the given addresses rather
// than resolving hostname. When there is a SOCKS5 proxy, the addresses
// are the addresses of the proxy.
func (o *Orchestrator) ConnectAddresses(ctx context.Context, addrs []string,
	hostname string, port int, config *Config, callback Callback) {
	if config == nil {
		config = &Config{}
	}
	target := model.Endpoint{Hostname: hostname, Port: port}
	first := port
	if config.ProxyEndpoint != "" {
		proxy, err := parseEndpoint(config.ProxyEndpoint)
		if err != nil {
			o.failSoon(errorsx.NewTopLevelGenericErrWrapper(err), callback)
			return
		}
		first = proxy.Port
	}
	o.run(ctx, newEndpoints(addrs, first), target, config, callback)
}

func newEndpoints(addrs []string, port int) (out []model.Endpoint) {
	for _, addr := range addrs {
		out = append(out, model.Endpoint{Hostname: addr, Port: port})
	}
	return
}

// resolve maps hostname to addresses. The callback may run before
// resolve returns only on success.
func (o *Orchestrator) resolve(ctx context.Context, hostname string, callback func([]string, error)) {
	if net.ParseIP(hostname) != nil {
		callback([]string{hostname}, nil)
		return
	}
	if o.Resolver == nil {
		err := errorsx.NewErrWrapper(errorsx.ClassifyResolverError, errorsx.ResolveOperation, ErrNoResolver)
		o.Reactor.CallSoon(func() {
			callback(nil, err)
		})
		return
	}
	logger := model.ValidLoggerOrDefault(o.Logger)
	logger.Debugf("resolve %s...", hostname)
	start := time.Now()
	go func() {
		addrs, err := o.Resolver.LookupHost(ctx, hostname)
		elapsed := time.Since(start)
		o.Reactor.CallSoon(func() {
			if err != nil {
				err = errorsx.NewErrWrapper(errorsx.ClassifyResolverError, errorsx.ResolveOperation, err)
				logger.Debugf("resolve %s... %s in %s", hostname, err, elapsed)
				callback(nil, err)
				return
			}
			logger.Debugf("resolve %s... %+v in %s", hostname, addrs, elapsed)
			callback(addrs, nil)
		})
	}()
}

func (o *Orchestrator) run(ctx context.Context, endpoints []model.Endpoint,
	target model.Endpoint, config *Config, callback Callback) {
	timeout := config.TimeoutDuration()
	r := &racer.Racer{
		Dialer:  o.Dialer,
		Logger:  o.Logger,
		Reactor: o.Reactor,
		Timeout: timeout,
	}
	r.Race(ctx, endpoints, func(raw *transport.Socket, result *model.ConnectResult, err error) {
		if err != nil {
			o.fail(err, result, callback)
			return
		}
		// the idle timeout belongs to the lowest level transport
		raw.SetTimeout(timeout)
		o.maybeSOCKS5(ctx, raw, target, config, result, callback, func(txp model.Transport) {
			o.maybeTLS(ctx, txp, target, config, result, callback, func(txp model.Transport) {
				result.Transport = txp
				callback(txp, result, nil)
			})
		})
	})
}

func (o *Orchestrator) maybeSOCKS5(ctx context.Context, txp model.Transport, target model.Endpoint,
	config *Config, result *model.ConnectResult, callback Callback, next func(model.Transport)) {
	if config.ProxyEndpoint == "" {
		next(txp)
		return
	}
	client := &socks5.Client{Logger: o.Logger, Reactor: o.Reactor}
	client.Tunnel(ctx, txp, target, func(tunnel *socks5.Tunnel, err error) {
		if err != nil {
			o.fail(err, result, callback)
			return
		}
		next(tunnel)
	})
}

func (o *Orchestrator) maybeTLS(ctx context.Context, txp model.Transport, target model.Endpoint,
	config *Config, result *model.ConnectResult, callback Callback, next func(model.Transport)) {
	if !config.TLSEnabled {
		next(txp)
		return
	}
	if o.Cache == nil {
		o.Cache = tlsx.NewCache()
	}
	tctx, err := o.Cache.Get(config.CABundlePath)
	if err != nil {
		txp.Close(nil)
		o.fail(err, result, callback)
		return
	}
	sni := config.TLSSNIHostname
	if sni == "" {
		sni = target.Hostname
	}
	options := &tlsx.Options{
		AllowLegacyProtocols: config.AllowLegacyTLS,
		AllowDirtyShutdown:   config.AllowDirtyTLSShutdown,
		NextProtos:           config.TLSALPN,
	}
	negotiator := &tlsx.Negotiator{Logger: o.Logger, Reactor: o.Reactor}
	negotiator.Negotiate(ctx, txp, tctx, sni, options, func(tlsTxp *tlsx.Transport, err error) {
		if err != nil {
			o.fail(err, result, callback)
			return
		}
		next(tlsTxp)
	})
}

// fail reports a failure. The caller must have closed any transport.
func (o *Orchestrator) fail(err error, result *model.ConnectResult, callback Callback) {
	result.Transport = nil
	callback(nil, result, &ConnectError{Err: err, Result: result})
}

// failSoon is like fail but runs in a later loop turn.
func (o *Orchestrator) failSoon(err error, callback Callback) {
	result := &model.ConnectResult{ID: uuid.NewString()}
	o.Reactor.CallSoon(func() {
		o.fail(err, result, callback)
	})
}
