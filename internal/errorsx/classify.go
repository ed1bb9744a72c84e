package errorsx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ClassifyGenericError maps an error occurred during an operation
// to a failure string. This specific classifier is the most generic
// one. You usually use it when mapping I/O errors. You should check
// whether there is a specific classifier for more specific operations
// (e.g., TLS handshake, SOCKS5 handshake).
//
// If the input error is an *ErrWrapper we don't perform
// the classification again and we return its Failure.
//
// If everything else fails, this classifier returns a string
// like "unknown_failure: XXX".
func ClassifyGenericError(err error) string {
	if errwrapper, found := asErrWrapper(err); found {
		return errwrapper.Error() // we've already wrapped it
	}

	var connectFailed *ConnectFailedError
	if errors.As(err, &connectFailed) {
		return FailureConnectError
	}

	// Classify system errors first. We could use strings for many
	// of them on Unix, but this would fail on Windows.
	if failure := classifySyscallError(err); failure != "" {
		return failure
	}

	if failure := classifySentinel(err); failure != "" {
		return failure
	}

	if errors.Is(err, context.Canceled) {
		return FailureInterrupted
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return FailureGenericTimeoutError
	}

	if failure := classifyWithStringSuffix(err); failure != "" {
		return failure
	}

	return fmt.Sprintf("unknown_failure: %s", err.Error())
}

// classifyWithStringSuffix is a subset of ClassifyGenericError that
// performs classification by looking at error suffixes. This function
// will return an empty string if it cannot classify the error.
func classifyWithStringSuffix(err error) string {
	s := err.Error()
	if strings.HasSuffix(s, "operation was canceled") {
		return FailureInterrupted
	}
	if strings.HasSuffix(s, "EOF") {
		return FailureEOFError
	}
	if strings.HasSuffix(s, "context deadline exceeded") {
		return FailureGenericTimeoutError
	}
	if strings.HasSuffix(s, "i/o timeout") {
		return FailureGenericTimeoutError
	}
	if strings.HasSuffix(s, "TLS handshake timeout") {
		return FailureGenericTimeoutError
	}
	if strings.HasSuffix(s, "use of closed network connection") {
		return FailureConnectionAlreadyClosed
	}
	return "" // not found
}

// ClassifyResolverError maps DNS resolution errors to failure
// strings. We don't distinguish between NXDOMAIN and other DNS
// errors: the resolver is not our business, so any lookup error
// which is not a timeout or an interruption is a dns_lookup_error.
//
// If the input error is an *ErrWrapper we don't perform
// the classification again and we return its Failure.
func ClassifyResolverError(err error) string {
	if errwrapper, found := asErrWrapper(err); found {
		return errwrapper.Error() // we've already wrapped it
	}
	switch failure := ClassifyGenericError(err); failure {
	case FailureInterrupted, FailureGenericTimeoutError, FailureNoAddresses:
		return failure
	default:
		return FailureDNSLookupError
	}
}

// ClassifySOCKSError maps errors occurring during the SOCKS5
// handshake to failure strings.
//
// If the input error is an *ErrWrapper we don't perform
// the classification again and we return its Failure.
//
// If this classifier fails, it calls ClassifyGenericError
// and returns to the caller its return value.
func ClassifySOCKSError(err error) string {
	if errwrapper, found := asErrWrapper(err); found {
		return errwrapper.Error() // we've already wrapped it
	}
	var replyErr *SOCKSReplyError
	if errors.As(err, &replyErr) {
		return replyErr.Failure()
	}
	return ClassifyGenericError(err)
}

// ClassifyTLSHandshakeError maps an error occurred during the TLS
// handshake to a failure string.
//
// If the input error is an *ErrWrapper we don't perform
// the classification again and we return its Failure.
//
// If this classifier fails, it calls ClassifyGenericError
// and returns to the caller its return value.
func ClassifyTLSHandshakeError(err error) string {
	if errwrapper, found := asErrWrapper(err); found {
		return errwrapper.Error() // we've already wrapped it
	}
	var (
		hostnameErr      x509.HostnameError
		unknownAuthority x509.UnknownAuthorityError
		invalidCert      x509.CertificateInvalidError
		systemRootsErr   x509.SystemRootsError
		constraintErr    x509.ConstraintViolationError
		unhandledCrit    x509.UnhandledCriticalExtension
		insecureAlgo     x509.InsecureAlgorithmError
		verificationErr  *tls.CertificateVerificationError
		alertErr         tls.AlertError
		recordHeaderErr  tls.RecordHeaderError
	)
	if errors.As(err, &hostnameErr) {
		// Test case: https://wrong.host.badssl.com/
		return FailureSSLInvalidHostname
	}
	if errors.As(err, &unknownAuthority) || errors.As(err, &invalidCert) ||
		errors.As(err, &systemRootsErr) || errors.As(err, &constraintErr) ||
		errors.As(err, &unhandledCrit) || errors.As(err, &insecureAlgo) ||
		errors.As(err, &verificationErr) {
		// Test cases: https://expired.badssl.com/ and https://self-signed.badssl.com/
		return FailureSSLInvalidCertificate
	}
	if errors.As(err, &alertErr) || errors.As(err, &recordHeaderErr) {
		return FailureSSLFailedHandshake
	}
	if failure := classifySentinel(err); failure != "" {
		return failure
	}
	failure := ClassifyGenericError(err)
	if strings.HasPrefix(failure, "unknown_failure") && isTLSErrorString(err.Error()) {
		// Any other error emitted by crypto/tls itself, including the alerts
		// sent by the peer, means that the handshake did not complete for
		// a TLS specific reason.
		return FailureSSLFailedHandshake
	}
	return failure
}

// isTLSErrorString returns whether s looks like an error emitted by crypto/tls.
func isTLSErrorString(s string) bool {
	return strings.HasPrefix(s, "tls: ") || strings.HasPrefix(s, "remote error: tls: ")
}
