package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

type fakeStatusErr struct{ code int }

func (e fakeStatusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e fakeStatusErr) HTTPStatus() int { return e.code }

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("upstream overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("chat completion: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilAndRegular(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
	if IsTransient(errors.New("invalid image payload")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_Network(t *testing.T) {
	cases := []error{
		fmt.Errorf("write tcp: %w", syscall.ECONNRESET),
		fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED),
		&net.DNSError{IsTimeout: true, Err: "timeout"},
		errors.New("read: i/o timeout"),
		errors.New("TLS handshake timeout"),
	}
	for _, err := range cases {
		if !IsTransient(err) {
			t.Errorf("expected %v to be transient", err)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 402, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected HTTP %d to NOT be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner, 500)

	if !errors.Is(te, inner) {
		t.Error("TransientError.Unwrap should return the inner error")
	}
	if te.Error() != "root cause" {
		t.Errorf("unexpected message %q", te.Error())
	}
}

func TestStatusCode(t *testing.T) {
	if got := StatusCode(NewTransientError(errors.New("x"), 502)); got != 502 {
		t.Errorf("transient status: got %d", got)
	}
	if got := StatusCode(fmt.Errorf("wrap: %w", fakeStatusErr{401})); got != 401 {
		t.Errorf("status coder: got %d", got)
	}
	if got := StatusCode(errors.New("plain")); got != 0 {
		t.Errorf("plain error: got %d", got)
	}
}

func TestReason(t *testing.T) {
	var syntaxErr error
	var v map[string]any
	syntaxErr = json.Unmarshal([]byte(`{broken`), &v)

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"status", fakeStatusErr{400}, ReasonStatus},
		{"transient status", NewTransientError(fakeStatusErr{503}, 503), ReasonStatus},
		{"empty reply", fmt.Errorf("chat: %w", ErrEmptyReply), ReasonEmptyReply},
		{"canceled", fmt.Errorf("send: %w", context.Canceled), ReasonCanceled},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), ReasonTimeout},
		{"net timeout", &net.DNSError{IsTimeout: true, Err: "timeout"}, ReasonTimeout},
		{"net other", &net.DNSError{Err: "no such host"}, ReasonTransport},
		{"decode", fmt.Errorf("unmarshal: %w", syntaxErr), ReasonDecode},
		{"reset", fmt.Errorf("read: %w", syscall.ECONNRESET), ReasonTransport},
		{"unknown", errors.New("boom"), ReasonUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Reason(tt.err); got != tt.want {
				t.Errorf("Reason() = %q, want %q", got, tt.want)
			}
		})
	}
}
