// Package socks5 implements the client side of the SOCKS5 CONNECT
// handshake on top of an established model.Transport.
//
// We only offer the "no authentication required" method. After the
// handshake, a Tunnel forwards bytes to and from the transport below
// it and behaves like any other model.Transport.
package socks5
