package errorsx

import (
	"errors"
	"fmt"
	"strings"
)

// Errors generated by this module. The classifiers map each of
// them to the corresponding FailureXXX string.
var (
	// ErrNoAddresses means we were asked to connect to an empty list.
	ErrNoAddresses = errors.New("no addresses to connect to")

	// ErrTimeout means that the idle timeout of a transport expired.
	ErrTimeout = errors.New("idle timeout expired")

	// ErrSOCKSBadVersion means the proxy replied with a version other than 5.
	ErrSOCKSBadVersion = errors.New("socks5: bad version")

	// ErrSOCKSAddressTooLong means the domain does not fit the 1-byte length.
	ErrSOCKSAddressTooLong = errors.New("socks5: address too long")

	// ErrSOCKSInvalidPort means the port is outside of [0, 65535].
	ErrSOCKSInvalidPort = errors.New("socks5: invalid port")

	// ErrSOCKSNoAcceptableAuth means the proxy selected a method
	// different from "no authentication required".
	ErrSOCKSNoAcceptableAuth = errors.New("socks5: no acceptable authentication method")

	// ErrSOCKSBadReservedField means the reply reserved field is not zero.
	ErrSOCKSBadReservedField = errors.New("socks5: bad reserved field")

	// ErrSOCKSBadAddressType means the reply contains an unknown address type.
	ErrSOCKSBadAddressType = errors.New("socks5: bad address type")

	// ErrSSLNoCertificate means the peer did not present any certificate.
	ErrSSLNoCertificate = errors.New("tls: peer did not present a certificate")

	// ErrSSLMissingHostname means we cannot verify the peer because we
	// don't know which hostname to verify.
	ErrSSLMissingHostname = errors.New("tls: missing hostname for verification")

	// ErrSSLDirtyShutdown means the peer closed the connection
	// without sending the close_notify alert.
	ErrSSLDirtyShutdown = errors.New("tls: unclean shutdown")

	// ErrMissingCABundlePath means there is no CA path and no built-in CA bundle.
	ErrMissingCABundlePath = errors.New("tls: missing CA bundle path")

	// ErrSSLCtxNew means we could not create a TLS context.
	ErrSSLCtxNew = errors.New("tls: cannot create context")

	// ErrSSLCtxLoadVerifyLocations means we could not load the CA bundle.
	ErrSSLCtxLoadVerifyLocations = errors.New("tls: cannot load CA bundle")
)

// sentinels maps the errors above to their failure strings.
var sentinels = []struct {
	err     error
	failure string
}{
	{ErrNoAddresses, FailureNoAddresses},
	{ErrTimeout, FailureGenericTimeoutError},
	{ErrSOCKSBadVersion, FailureSOCKSError},
	{ErrSOCKSAddressTooLong, FailureSOCKSAddressTooLong},
	{ErrSOCKSInvalidPort, FailureSOCKSInvalidPort},
	{ErrSOCKSNoAcceptableAuth, FailureSOCKSNoAvailableAuthentication},
	{ErrSOCKSBadReservedField, FailureSOCKSBadReservedField},
	{ErrSOCKSBadAddressType, FailureSOCKSBadAddressType},
	{ErrSSLNoCertificate, FailureSSLNoCertificate},
	{ErrSSLMissingHostname, FailureSSLMissingHostname},
	{ErrSSLDirtyShutdown, FailureSSLDirtyShutdown},
	{ErrMissingCABundlePath, FailureMissingCABundlePath},
	{ErrSSLCtxNew, FailureSSLCtxNewError},
	{ErrSSLCtxLoadVerifyLocations, FailureSSLCtxLoadVerifyLocationsError},
}

// classifySentinel returns the failure of a known error or "".
func classifySentinel(err error) string {
	for _, entry := range sentinels {
		if errors.Is(err, entry.err) {
			return entry.failure
		}
	}
	return ""
}

// ConnectFailedError is the error returned when we could not connect
// to any of several addresses. Children contains the error of each
// attempt in the same order in which we tried the addresses.
type ConnectFailedError struct {
	Children []error
}

// Error implements error.
func (e *ConnectFailedError) Error() string {
	var b strings.Builder
	b.WriteString(FailureConnectError)
	b.WriteString(" [")
	for idx, child := range e.Children {
		if idx > 0 {
			b.WriteString(", ")
		}
		b.WriteString(child.Error())
	}
	b.WriteString("]")
	return b.String()
}

// Unwrap allows errors.Is and errors.As to inspect the children.
func (e *ConnectFailedError) Unwrap() []error {
	return e.Children
}

// SOCKSReplyError means that the SOCKS5 proxy replied to our CONNECT
// request with a nonzero reply code.
type SOCKSReplyError struct {
	Code byte
}

var socksReplyMessages = map[byte]string{
	0x01: "general SOCKS server failure",
	0x02: "connection not allowed by ruleset",
	0x03: "network unreachable",
	0x04: "host unreachable",
	0x05: "connection refused",
	0x06: "TTL expired",
	0x07: "command not supported",
	0x08: "address type not supported",
}

// Error implements error.
func (e *SOCKSReplyError) Error() string {
	if msg, found := socksReplyMessages[e.Code]; found {
		return "socks5: " + msg
	}
	return fmt.Sprintf("socks5: unknown reply code %d", e.Code)
}

// Failure maps the reply code to a failure string.
func (e *SOCKSReplyError) Failure() string {
	switch e.Code {
	case 0x03:
		return FailureNetworkUnreachable
	case 0x04:
		return FailureHostUnreachable
	case 0x05:
		return FailureConnectionRefused
	case 0x06:
		return FailureTimedOut
	case 0x08:
		return FailureSOCKSBadAddressType
	default:
		return FailureSOCKSError
	}
}
