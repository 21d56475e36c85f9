package conn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeConnect indicates the TCP connect failed (refused, unreachable)
	ErrTypeConnect ErrorType = iota
	// ErrTypeTimeout indicates a connect or read deadline expired
	ErrTypeTimeout
	// ErrTypeTransport indicates the session broke mid-exchange
	ErrTypeTransport
	// ErrTypeMalformed indicates a response without the expected leading token
	ErrTypeMalformed
	// ErrTypeNotConnected indicates a command was sent with no open session
	ErrTypeNotConnected
	// ErrTypeInvalidTimeout indicates a timeout value that is not a number
	ErrTypeInvalidTimeout
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeConnect:
		return "Connect Failure"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeTransport:
		return "Transport Broken"
	case ErrTypeMalformed:
		return "Malformed Response"
	case ErrTypeNotConnected:
		return "Not Connected"
	case ErrTypeInvalidTimeout:
		return "Invalid Timeout"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is returned by Conn operations
type Error struct {
	Type    ErrorType // Category of error
	Message string    // Human-readable error message
	Target  string    // Device address, if known
	Err     error     // Underlying error, if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError wraps a socket error as an *Error. Deadline
// expiries become ErrTypeTimeout, dial failures ErrTypeConnect and
// everything else ErrTypeTransport.
func ClassifyNetworkError(err error, target string, message string) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	classified := &Error{
		Type:    ErrTypeTransport,
		Message: message,
		Target:  target,
		Err:     err,
	}

	if os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
		classified.Type = ErrTypeTimeout
		return classified
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		classified.Type = ErrTypeConnect
		return classified
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		classified.Type = ErrTypeConnect
		return classified
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		classified.Type = ErrTypeConnect
		return classified
	}

	return classified
}

func newNotConnectedError(message string) *Error {
	return &Error{Type: ErrTypeNotConnected, Message: message}
}

func typeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

// IsTransportError reports whether err means the session is broken.
// Read timeouts count: the frame boundary is lost once a read times out.
func IsTransportError(err error) bool {
	t, ok := typeOf(err)
	return ok && (t == ErrTypeTransport || t == ErrTypeTimeout)
}

// IsTimeout reports whether err is a deadline expiry
func IsTimeout(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeTimeout
}

// IsNotConnected reports whether err was caused by a missing session
func IsNotConnected(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeNotConnected
}

// IsClosedByPeer reports whether the device closed the session
func IsClosedByPeer(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed)
}

// TroubleshootingHint returns user-facing advice for an error
func TroubleshootingHint(err error) []string {
	t, ok := typeOf(err)
	if !ok {
		return nil
	}

	switch t {
	case ErrTypeConnect:
		return []string{
			"Check that the Line-us is powered on and its light is steady",
			"Verify you are on the same network as the device",
			"Try the IP address instead of the .local name",
			"Run 'lineus scan' to search the local subnets",
		}
	case ErrTypeTimeout:
		return []string{
			"The device did not answer in time",
			"Increase the timeout with --timeout",
			"Long drawing moves block until the pen arrives; allow for them",
		}
	case ErrTypeTransport:
		if IsClosedByPeer(err) {
			return []string{
				"The device closed the connection",
				"Only one client may be connected at a time; close other apps",
			}
		}
		return []string{"The connection broke; reconnect and retry"}
	case ErrTypeNotConnected:
		return []string{"Connect to a device first (use --device or mDNS discovery)"}
	default:
		return []string{strings.TrimSpace(err.Error())}
	}
}
