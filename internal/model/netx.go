package model

//
// Network extensions
//

import (
	"context"
	"net"
	"strconv"
	"time"
)

// SimpleDialer establishes network connections.
type SimpleDialer interface {
	// DialContext behaves like net.Dialer.DialContext.
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// SimpleResolver maps a domain name to IP addresses. Resolving names is
// not our job: we just consume whatever the configured resolver returns.
type SimpleResolver interface {
	// LookupHost behaves like net.Resolver.LookupHost.
	LookupHost(ctx context.Context, domain string) ([]string, error)
}

// Endpoint is a hostname (or IP address) and a port.
type Endpoint struct {
	// Hostname is a domain name or an IPv4/IPv6 literal.
	Hostname string

	// Port is the port number. We use an int rather than an uint16 so
	// that code parsing ports can detect out of range values.
	Port int
}

// String returns the endpoint in the format expected by net.Dial.
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Hostname, strconv.Itoa(e.Port))
}

// ConnectAttemptResult is the outcome of connecting to a single address.
type ConnectAttemptResult struct {
	// Address is the IP address we attempted to use.
	Address string

	// Port is the port we attempted to use.
	Port int

	// Err is the error that occurred or nil.
	Err error

	// Elapsed is the time spent connecting.
	Elapsed time.Duration
}

// ConnectResult contains information about a connect operation. On
// failure, you can extract it from the returned error to figure out
// what went wrong without parsing error strings.
type ConnectResult struct {
	// ID is a unique identifier for the connect operation, which
	// also appears inside the logs, useful to correlate them.
	ID string

	// Addresses contains the addresses we tried to connect to.
	Addresses []string

	// Attempts contains the result of each attempt in order.
	Attempts []ConnectAttemptResult

	// Transport is the transport we have chosen or nil.
	Transport Transport

	// ConnectTime is the time elapsed until we obtained a
	// connected socket or until we gave up.
	ConnectTime time.Duration
}

// Errors returns the errors that occurred for each failed attempt
// in the same order in which we attempted connecting.
func (cr *ConnectResult) Errors() (out []error) {
	for _, attempt := range cr.Attempts {
		if attempt.Err != nil {
			out = append(out, attempt.Err)
		}
	}
	return
}
