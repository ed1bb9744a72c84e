package testingx

import (
	"bytes"
	"io"
	"net"
	"sync"

	"github.com/armon/go-socks5"
	"github.com/ooni/mknet/internal/runtimex"
	txsocks5 "github.com/txthinking/socks5"
)

// SOCKS5Server is a working SOCKS5 proxy listening on localhost.
type SOCKS5Server struct {
	closeOnce sync.Once
	listener  net.Listener
	wg        sync.WaitGroup
}

// MustNewSOCKS5Server creates and starts a new SOCKS5Server that
// does not require authentication.
func MustNewSOCKS5Server() *SOCKS5Server {
	server := runtimex.Try1(socks5.New(&socks5.Config{}))
	srv := &SOCKS5Server{
		listener: runtimex.Try1(net.Listen("tcp", "127.0.0.1:0")),
	}
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		_ = server.Serve(srv.listener) // returns when we close the listener
	}()
	return srv
}

// Endpoint returns the endpoint where the proxy is listening.
func (p *SOCKS5Server) Endpoint() string {
	return p.listener.Addr().String()
}

// Close stops accepting new connections.
func (p *SOCKS5Server) Close() (err error) {
	p.closeOnce.Do(func() {
		err = p.listener.Close()
		p.wg.Wait()
	})
	return
}

// SOCKS5Script tells a [SOCKS5ScriptedServer] how to reply.
type SOCKS5Script struct {
	// AuthReply is what we send after reading the client's methods.
	AuthReply []byte

	// StopAfterAuth causes the server to close the connection after
	// sending AuthReply without reading the CONNECT request.
	StopAfterAuth bool

	// ConnectReply is what we send after reading the CONNECT request.
	ConnectReply []byte

	// Echo causes the server to echo back whatever it receives after
	// sending ConnectReply, like a proxied echo server would do.
	Echo bool
}

// SOCKS5ScriptedServer is a SOCKS5 server accepting a single client and
// following a script, which allows to emit malformed replies.
type SOCKS5ScriptedServer struct {
	conn     net.Conn
	done     chan struct{}
	listener net.Listener
	mu       sync.Mutex
	methods  []byte
	request  *txsocks5.Request
}

// MustNewSOCKS5ScriptedServer creates and starts a new SOCKS5ScriptedServer.
func MustNewSOCKS5ScriptedServer(script *SOCKS5Script) *SOCKS5ScriptedServer {
	srv := &SOCKS5ScriptedServer{
		done:     make(chan struct{}),
		listener: runtimex.Try1(net.Listen("tcp", "127.0.0.1:0")),
	}
	go srv.serve(script)
	return srv
}

func (p *SOCKS5ScriptedServer) serve(script *SOCKS5Script) {
	defer close(p.done)
	conn, err := p.listener.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()

	negotiation, err := txsocks5.NewNegotiationRequestFrom(conn)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.methods = negotiation.Methods
	p.mu.Unlock()
	if _, err := conn.Write(script.AuthReply); err != nil || script.StopAfterAuth {
		return
	}

	request, err := txsocks5.NewRequestFrom(conn)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.request = request
	p.mu.Unlock()
	if _, err := conn.Write(script.ConnectReply); err != nil {
		return
	}

	if script.Echo {
		_, _ = io.Copy(conn, conn)
		return
	}
	_, _ = io.Copy(io.Discard, conn) // wait for the client to close
}

// Endpoint returns the endpoint where the server is listening.
func (p *SOCKS5ScriptedServer) Endpoint() string {
	return p.listener.Addr().String()
}

// Methods returns the authentication methods offered by the client.
func (p *SOCKS5ScriptedServer) Methods() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.methods
}

// Request returns the CONNECT request sent by the client or nil.
func (p *SOCKS5ScriptedServer) Request() *txsocks5.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.request
}

// Close closes the listener and the client conn, if any, and
// waits for the client handler to return.
func (p *SOCKS5ScriptedServer) Close() error {
	err := p.listener.Close()
	p.mu.Lock()
	if p.conn != nil {
		p.conn.Close()
	}
	p.mu.Unlock()
	<-p.done
	return err
}

// SOCKS5Reply returns the serialized CONNECT reply with the given code,
// using 0.0.0.0:0 as the bound address.
func SOCKS5Reply(rep byte) []byte {
	reply := txsocks5.NewReply(rep, txsocks5.ATYPIPv4, []byte{0, 0, 0, 0}, []byte{0, 0})
	return socks5ReplyBytes(reply)
}

// SOCKS5ReplyWithAddr is like SOCKS5Reply but allows to choose the bound
// address type and value. For domains, pass the domain without length.
func SOCKS5ReplyWithAddr(rep, atyp byte, addr, port []byte) []byte {
	return socks5ReplyBytes(txsocks5.NewReply(rep, atyp, addr, port))
}

func socks5ReplyBytes(reply *txsocks5.Reply) []byte {
	var buffer bytes.Buffer
	_ = runtimex.Try1(reply.WriteTo(&buffer))
	return buffer.Bytes()
}
