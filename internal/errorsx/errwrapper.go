package errorsx

import (
	"encoding/json"
	"errors"
)

// Operations that may fail. The major operations are ConnectOperation,
// SOCKS5HandshakeOperation, TLSHandshakeOperation, and ResolveOperation.
// The others are minor operations of an established transport.
const (
	// ResolveOperation is the operation where we resolve a domain name.
	ResolveOperation = "resolve"

	// ConnectOperation is the operation where we connect a socket.
	ConnectOperation = "connect"

	// SOCKS5HandshakeOperation is the SOCKS5 handshake.
	SOCKS5HandshakeOperation = "socks5_handshake"

	// TLSHandshakeOperation is the TLS handshake.
	TLSHandshakeOperation = "tls_handshake"

	// ReadOperation is when we read from a transport.
	ReadOperation = "read"

	// WriteOperation is when we write to a transport.
	WriteOperation = "write"

	// CloseOperation is when we close a transport.
	CloseOperation = "close"

	// TopLevelOperation is the operation we use when we don't know
	// which operation failed.
	TopLevelOperation = "top_level"
)

// ErrWrapper is the error wrapper used by every layer of this module. The
// key objective of this structure is to properly set Failure, which is also
// returned by the Error() method, to be one of the FailureXXX strings.
type ErrWrapper struct {
	// Failure is the failure string. This is either one of the FailureXXX strings or a string
	// like `unknown_failure: ...` for errors we cannot map.
	Failure string

	// Operation is the operation that failed. When an ErrWrapper wraps
	// another ErrWrapper that refers to a major operation, it inherits
	// the major operation of the child, so the topmost wrapper always
	// refers to the major operation that failed.
	Operation string

	// WrappedErr is the error that we're wrapping.
	WrappedErr error
}

// Error returns the failure string.
func (e *ErrWrapper) Error() string {
	return e.Failure
}

// Unwrap allows to access the underlying error.
func (e *ErrWrapper) Unwrap() error {
	return e.WrappedErr
}

// MarshalJSON converts an ErrWrapper to a JSON value.
func (e *ErrWrapper) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Failure)
}

// Classifier maps a Go error to a failure string.
type Classifier func(err error) string

// NewErrWrapper creates a new ErrWrapper using the given classifier,
// operation name, and underlying error. This function panics if the
// classifier is nil, or the operation is empty, or err is nil.
//
// If err has already been classified, the returned wrapper uses the same
// failure string and possibly inherits the major operation.
func NewErrWrapper(c Classifier, op string, err error) *ErrWrapper {
	if wrapper, found := asErrWrapper(err); found {
		return &ErrWrapper{
			Failure:    wrapper.Failure,
			Operation:  classifyOperation(wrapper, op),
			WrappedErr: err,
		}
	}
	if c == nil {
		panic("nil classifier")
	}
	if op == "" {
		panic("empty op")
	}
	if err == nil {
		panic("nil err")
	}
	return &ErrWrapper{
		Failure:    c(err),
		Operation:  op,
		WrappedErr: err,
	}
}

// NewTopLevelGenericErrWrapper wraps an error occurring at top
// level using ClassifyGenericError. This function panics if err is nil.
func NewTopLevelGenericErrWrapper(err error) *ErrWrapper {
	return NewErrWrapper(ClassifyGenericError, TopLevelOperation, err)
}

func classifyOperation(ew *ErrWrapper, operation string) string {
	switch ew.Operation {
	case ConnectOperation, ResolveOperation, SOCKS5HandshakeOperation, TLSHandshakeOperation:
		return ew.Operation
	default:
		return operation
	}
}

// asErrWrapper returns the first *ErrWrapper in the chain of errors
// obtained by calling Unwrap() error. We do not descend into errors
// wrapping several errors, such as ConnectFailedError, because their
// children have been classified independently of each other.
func asErrWrapper(err error) (*ErrWrapper, bool) {
	for err != nil {
		if wrapper, good := err.(*ErrWrapper); good {
			return wrapper, true
		}
		err = errors.Unwrap(err)
	}
	return nil, false
}
