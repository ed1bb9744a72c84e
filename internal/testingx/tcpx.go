package testingx

import (
	"io"
	"net"
	"sync"

	"github.com/ooni/mknet/internal/runtimex"
)

// EchoServer is a TCP server listening on localhost that echoes
// back whatever each client sends until the client closes.
type EchoServer struct {
	closeOnce sync.Once
	listener  net.Listener
	wg        sync.WaitGroup
}

// MustNewEchoServer creates and starts a new EchoServer.
func MustNewEchoServer() *EchoServer {
	srv := &EchoServer{
		listener: runtimex.Try1(net.Listen("tcp", "127.0.0.1:0")),
	}
	srv.wg.Add(1)
	go srv.mainloop()
	return srv
}

func (p *EchoServer) mainloop() {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			_, _ = io.Copy(conn, conn)
		}()
	}
}

// Endpoint returns the endpoint where the server is listening.
func (p *EchoServer) Endpoint() string {
	return p.listener.Addr().String()
}

// Close stops accepting new connections.
func (p *EchoServer) Close() (err error) {
	p.closeOnce.Do(func() {
		err = p.listener.Close()
		p.wg.Wait()
	})
	return
}

// MustNewRefusedEndpoint returns a localhost endpoint where nobody is
// listening, so connecting to it fails with connection refused.
func MustNewRefusedEndpoint() string {
	listener := runtimex.Try1(net.Listen("tcp", "127.0.0.1:0"))
	endpoint := listener.Addr().String()
	runtimex.Try0(listener.Close())
	return endpoint
}
