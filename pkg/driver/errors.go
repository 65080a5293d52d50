// pkg/driver/errors.go
package driver

import (
	"errors"
	"fmt"
)

// ErrLinkLost is reported when the device or dongle signals a dropped link
var ErrLinkLost = errors.New("link lost")

// ConnectErrorKind classifies why a connection attempt failed
type ConnectErrorKind int

const (
	TransportUnavailable ConnectErrorKind = iota
	HandshakeRejected
	Timeout
)

// String returns the string representation of ConnectErrorKind
func (k ConnectErrorKind) String() string {
	switch k {
	case TransportUnavailable:
		return "TransportUnavailable"
	case HandshakeRejected:
		return "HandshakeRejected"
	case Timeout:
		return "Timeout"
	default:
		return fmt.Sprintf("ConnectErrorKind(%d)", int(k))
	}
}

// ConnectError is returned when a connection attempt fails
type ConnectError struct {
	Kind ConnectErrorKind
	Err  error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connect failed: %s", e.Kind)
	}
	return fmt.Sprintf("connect failed: %s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// NewConnectError wraps err with a connect failure kind
func NewConnectError(kind ConnectErrorKind, err error) *ConnectError {
	return &ConnectError{Kind: kind, Err: err}
}

// IsConnectErrorKind reports whether err is a ConnectError of the given kind
func IsConnectErrorKind(err error, kind ConnectErrorKind) bool {
	var cerr *ConnectError
	return errors.As(err, &cerr) && cerr.Kind == kind
}

// TransportError is a read, write or link failure during streaming
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
