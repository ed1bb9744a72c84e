package connect

import (
	"context"
	"crypto/x509"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/google/go-cmp/cmp"
	"github.com/ooni/mknet/internal/errorsx"
	"github.com/ooni/mknet/internal/model"
	"github.com/ooni/mknet/internal/model/mocks"
	"github.com/ooni/mknet/internal/reactor"
	"github.com/ooni/mknet/internal/testingx"
	"github.com/ooni/mknet/internal/tlsx"
	"github.com/ooni/netem"
)

// connectOutcome is the outcome of runConnect.
type connectOutcome struct {
	// result is the ConnectResult.
	result *model.ConnectResult

	// err is the connect error or nil.
	err error

	// echoed is what we read back after writing the payload.
	echoed []byte

	// ioErr is the first I/O error after connecting or nil.
	ioErr error

	// connected is true if the transport emitted the connect event.
	connected bool
}

// runConnect runs start with a new Orchestrator. On success, it writes
// payload and reads until it receives len(payload) bytes or an error.
func runConnect(t *testing.T, o *Orchestrator, payload []byte,
	start func(o *Orchestrator, callback Callback)) *connectOutcome {
	out := &connectOutcome{}
	r := reactor.New()
	o.Reactor = r
	o.Logger = log.Log
	cv := &testingx.CloseVerify{}
	o.Dialer = cv.WrapDialer(&net.Dialer{})
	r.RunWith(func() {
		returned := false
		start(o, func(txp model.Transport, result *model.ConnectResult, err error) {
			if !returned {
				t.Error("callback called before returning")
			}
			out.result, out.err = result, err
			if err != nil {
				r.CallSoon(r.Stop) // after transports are closed
				return
			}
			txp.OnConnect(func() {
				out.connected = true
			})
			txp.OnData(func(data []byte) {
				out.echoed = append(out.echoed, data...)
				if len(out.echoed) >= len(payload) {
					txp.Close(r.Stop)
				}
			})
			txp.OnError(func(err error) {
				out.ioErr = err
				txp.Close(r.Stop)
			})
			txp.Write(payload)
		})
		returned = true
	})
	if err := cv.CheckForOpenConns(); err != nil {
		t.Fatal(err)
	}
	return out
}

// splitEndpoint splits an endpoint string.
func splitEndpoint(t *testing.T, address string) (string, int) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		t.Fatal(err)
	}
	number, err := strconv.Atoi(port)
	if err != nil {
		t.Fatal(err)
	}
	return host, number
}

// failureOf returns the failure and the operation of an error.
func failureOf(t *testing.T, err error) (string, string) {
	var ew *errorsx.ErrWrapper
	if !errors.As(err, &ew) {
		t.Fatal("not an ErrWrapper", err)
	}
	return ew.Failure, ew.Operation
}

// newCacheWithCA returns a cache using the pool of ca as the builtin pool.
func newCacheWithCA(ca *netem.CA) *tlsx.Cache {
	return &tlsx.Cache{
		BuiltinCertPool: func() (*x509.CertPool, error) {
			return ca.DefaultCertPool(), nil
		},
	}
}

func TestOrchestrator(t *testing.T) {
	payload := []byte("Bonsoir, Elliot!")
	ca := netem.MustNewCA()
	cert := ca.MustNewTLSCertificate("www.example.com")

	t.Run("with TCP and pre-resolved addresses", func(t *testing.T) {
		server := testingx.MustNewEchoServer()
		defer server.Close()
		host, port := splitEndpoint(t, server.Endpoint())
		out := runConnect(t, &Orchestrator{}, payload, func(o *Orchestrator, callback Callback) {
			o.ConnectAddresses(context.Background(), []string{host}, "www.example.com", port, nil, callback)
		})
		if out.err != nil {
			t.Fatal(out.err)
		}
		if diff := cmp.Diff(payload, out.echoed); diff != "" {
			t.Fatal(diff)
		}
		if out.result.Transport == nil || len(out.result.Attempts) != 1 {
			t.Fatal("unexpected result", out.result)
		}
	})

	t.Run("with TCP and an IP address", func(t *testing.T) {
		server := testingx.MustNewEchoServer()
		defer server.Close()
		host, port := splitEndpoint(t, server.Endpoint())
		out := runConnect(t, &Orchestrator{}, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(context.Background(), host, port, &Config{}, callback)
		})
		if out.err != nil {
			t.Fatal(out.err)
		}
		if diff := cmp.Diff(payload, out.echoed); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("with a domain name and no resolver", func(t *testing.T) {
		out := runConnect(t, &Orchestrator{}, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(context.Background(), "www.example.com", 443, &Config{}, callback)
		})
		failure, operation := failureOf(t, out.err)
		if failure != errorsx.FailureDNSLookupError || operation != errorsx.ResolveOperation {
			t.Fatal("unexpected error", failure, operation)
		}
		if result, found := ResultFromError(out.err); !found || result != out.result {
			t.Fatal("cannot extract the result")
		}
	})

	t.Run("with a resolver error", func(t *testing.T) {
		o := &Orchestrator{
			Resolver: &mocks.Resolver{
				MockLookupHost: func(ctx context.Context, domain string) ([]string, error) {
					return nil, errors.New("no such host")
				},
			},
		}
		out := runConnect(t, o, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(context.Background(), "www.example.com", 443, &Config{}, callback)
		})
		if failure, _ := failureOf(t, out.err); failure != errorsx.FailureDNSLookupError {
			t.Fatal("unexpected failure", failure)
		}
	})

	t.Run("with TLS and a resolver", func(t *testing.T) {
		server := testingx.MustNewTLSServer(testingx.TLSHandlerHandshakeAndEcho(cert))
		defer server.Close()
		host, port := splitEndpoint(t, server.Endpoint())
		o := &Orchestrator{
			Cache: newCacheWithCA(ca),
			Resolver: &mocks.Resolver{
				MockLookupHost: func(ctx context.Context, domain string) ([]string, error) {
					if domain != "www.example.com" {
						return nil, errors.New("no such host")
					}
					return []string{host}, nil
				},
			},
		}
		config := &Config{TLSEnabled: true}
		out := runConnect(t, o, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(context.Background(), "www.example.com", port, config, callback)
		})
		if out.err != nil {
			t.Fatal(out.err)
		}
		if diff := cmp.Diff(payload, out.echoed); diff != "" {
			t.Fatal(diff)
		}
		if _, good := out.result.Transport.(*tlsx.Transport); !good {
			t.Fatal("expected a TLS transport")
		}
		if !out.connected {
			t.Fatal("the connect event did not fire")
		}
		if o.Cache.Size() != 1 {
			t.Fatal("expected a cached context")
		}
	})

	t.Run("with TLS and the wrong SNI", func(t *testing.T) {
		server := testingx.MustNewTLSServer(testingx.TLSHandlerHandshakeAndEcho(cert))
		defer server.Close()
		host, port := splitEndpoint(t, server.Endpoint())
		o := &Orchestrator{Cache: newCacheWithCA(ca)}
		config := &Config{TLSEnabled: true, TLSSNIHostname: "www.example.org"}
		out := runConnect(t, o, payload, func(o *Orchestrator, callback Callback) {
			o.ConnectAddresses(context.Background(), []string{host}, "www.example.com", port, config, callback)
		})
		failure, operation := failureOf(t, out.err)
		if failure != errorsx.FailureSSLInvalidHostname || operation != errorsx.TLSHandshakeOperation {
			t.Fatal("unexpected error", failure, operation)
		}
		if out.result.Transport != nil {
			t.Fatal("expected no transport")
		}
		if len(out.result.Errors()) != 0 {
			t.Fatal("expected no connect errors")
		}
	})

	t.Run("with TLS and no CA bundle", func(t *testing.T) {
		server := testingx.MustNewEchoServer()
		defer server.Close()
		host, port := splitEndpoint(t, server.Endpoint())
		o := &Orchestrator{Cache: &tlsx.Cache{}}
		config := &Config{TLSEnabled: true}
		out := runConnect(t, o, payload, func(o *Orchestrator, callback Callback) {
			o.ConnectAddresses(context.Background(), []string{host}, "www.example.com", port, config, callback)
		})
		if failure, _ := failureOf(t, out.err); failure != errorsx.FailureMissingCABundlePath {
			t.Fatal("unexpected failure", failure)
		}
	})

	t.Run("with a SOCKS5 proxy", func(t *testing.T) {
		server := testingx.MustNewEchoServer()
		defer server.Close()
		proxy := testingx.MustNewSOCKS5Server()
		defer proxy.Close()
		host, port := splitEndpoint(t, server.Endpoint())
		config := &Config{ProxyEndpoint: proxy.Endpoint()}
		out := runConnect(t, &Orchestrator{}, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(context.Background(), host, port, config, callback)
		})
		if out.err != nil {
			t.Fatal(out.err)
		}
		if diff := cmp.Diff(payload, out.echoed); diff != "" {
			t.Fatal(diff)
		}
		proxyHost, _ := splitEndpoint(t, proxy.Endpoint())
		if diff := cmp.Diff([]string{proxyHost}, out.result.Addresses); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("with a SOCKS5 proxy and TLS", func(t *testing.T) {
		server := testingx.MustNewTLSServer(testingx.TLSHandlerHandshakeAndEcho(cert))
		defer server.Close()
		proxy := testingx.MustNewSOCKS5Server()
		defer proxy.Close()
		host, port := splitEndpoint(t, server.Endpoint())
		o := &Orchestrator{Cache: newCacheWithCA(ca)}
		config := &Config{
			ProxyEndpoint:  proxy.Endpoint(),
			TLSEnabled:     true,
			TLSSNIHostname: "www.example.com",
		}
		out := runConnect(t, o, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(context.Background(), host, port, config, callback)
		})
		if out.err != nil {
			t.Fatal(out.err)
		}
		if diff := cmp.Diff(payload, out.echoed); diff != "" {
			t.Fatal(diff)
		}
		if !out.connected {
			t.Fatal("the connect event did not fire")
		}
	})

	t.Run("when the context is canceled during the SOCKS5 handshake", func(t *testing.T) {
		// the proxy reads our methods and then never replies
		proxy := testingx.MustNewSOCKS5ScriptedServer(&testingx.SOCKS5Script{})
		defer proxy.Close()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		timer := time.AfterFunc(250*time.Millisecond, cancel)
		defer timer.Stop()
		config := &Config{ProxyEndpoint: proxy.Endpoint()}
		out := runConnect(t, &Orchestrator{}, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(ctx, "www.example.com", 443, config, callback)
		})
		failure, operation := failureOf(t, out.err)
		if failure != errorsx.FailureInterrupted || operation != errorsx.SOCKS5HandshakeOperation {
			t.Fatal("unexpected error", failure, operation)
		}
		if out.result.Transport != nil {
			t.Fatal("expected a nil transport")
		}
	})

	t.Run("when the SOCKS5 proxy fails", func(t *testing.T) {
		proxy := testingx.MustNewSOCKS5ScriptedServer(&testingx.SOCKS5Script{
			AuthReply:    []byte{5, 0},
			ConnectReply: testingx.SOCKS5Reply(0x01),
		})
		defer proxy.Close()
		config := &Config{ProxyEndpoint: proxy.Endpoint()}
		out := runConnect(t, &Orchestrator{}, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(context.Background(), "www.example.com", 443, config, callback)
		})
		failure, operation := failureOf(t, out.err)
		if failure != errorsx.FailureSOCKSError || operation != errorsx.SOCKS5HandshakeOperation {
			t.Fatal("unexpected error", failure, operation)
		}
	})

	t.Run("when all the addresses are refused", func(t *testing.T) {
		first, port := splitEndpoint(t, testingx.MustNewRefusedEndpoint())
		out := runConnect(t, &Orchestrator{}, payload, func(o *Orchestrator, callback Callback) {
			o.ConnectAddresses(context.Background(), []string{first, first}, "www.example.com", port, nil, callback)
		})
		if failure, _ := failureOf(t, out.err); failure != errorsx.FailureConnectError {
			t.Fatal("unexpected failure", failure)
		}
		result, found := ResultFromError(out.err)
		if !found || len(result.Errors()) != 2 {
			t.Fatal("unexpected result", result)
		}
	})

	t.Run("the idle timeout applies to the returned transport", func(t *testing.T) {
		server := testingx.MustNewTLSServer(testingx.TLSHandlerHandshakeAndEcho(cert))
		defer server.Close()
		host, port := splitEndpoint(t, server.Endpoint())
		o := &Orchestrator{Cache: newCacheWithCA(ca)}
		config := &Config{Timeout: 0.25, TLSEnabled: true}
		out := runConnect(t, o, nil, func(o *Orchestrator, callback Callback) {
			o.ConnectAddresses(context.Background(), []string{host}, "www.example.com", port, config, callback)
		})
		if out.err != nil {
			t.Fatal(out.err)
		}
		if failure, _ := failureOf(t, out.ioErr); failure != errorsx.FailureGenericTimeoutError {
			t.Fatal("unexpected failure", failure)
		}
	})

	t.Run("with an invalid proxy endpoint", func(t *testing.T) {
		config := &Config{ProxyEndpoint: "127.0.0.1"}
		out := runConnect(t, &Orchestrator{}, payload, func(o *Orchestrator, callback Callback) {
			o.Connect(context.Background(), "www.example.com", 443, config, callback)
		})
		if _, operation := failureOf(t, out.err); operation != errorsx.TopLevelOperation {
			t.Fatal("unexpected operation", operation)
		}
	})
}
