package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Failure reasons attached to upstream fallbacks in logs. Nothing is retried;
// the reason only tells operators why a frame was answered by the mock.
const (
	ReasonNoCredential = "no_credential"
	ReasonStatus       = "upstream_status"
	ReasonTimeout      = "timeout"
	ReasonCanceled     = "canceled"
	ReasonTransport    = "transport"
	ReasonDecode       = "decode"
	ReasonEmptyReply   = "empty_reply"
	ReasonUnknown      = "unknown"
)

// ErrEmptyReply marks an upstream response without any choices.
var ErrEmptyReply = errors.New("upstream returned no choices")

// TransientError tags an upstream failure caused by a temporary condition
// (408, 429, 5xx). Detector logs report it; the mock answers regardless.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// statusCoder is implemented by upstream errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or looks like a network-level hiccup.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// StatusCode extracts the upstream HTTP status from an error chain, or 0.
func StatusCode(err error) int {
	var te *TransientError
	if errors.As(err, &te) && te.StatusCode != 0 {
		return te.StatusCode
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// Reason maps an upstream error to one of the Reason* labels.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if StatusCode(err) != 0 {
		return ReasonStatus
	}
	if errors.Is(err, ErrEmptyReply) {
		return ReasonEmptyReply
	}
	var netErr net.Error
	isNet := errors.As(err, &netErr)
	if errors.Is(err, context.DeadlineExceeded) || (isNet && netErr.Timeout()) {
		return ReasonTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ReasonCanceled
	}
	if isNet {
		return ReasonTransport
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ReasonDecode
	}
	if IsTransient(err) {
		return ReasonTransport
	}
	return ReasonUnknown
}
