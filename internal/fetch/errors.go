package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a fetch or mutation failure.
type Kind string

const (
	KindNetwork   Kind = "network"   // request never reached the server
	KindServer    Kind = "server"    // non-2xx response
	KindMalformed Kind = "malformed" // 2xx with a body missing expected fields
	KindTimeout   Kind = "timeout"
	KindCanceled  Kind = "canceled" // superseded or owner closed; never shown to users
)

// Error is the single error shape the fetch layer returns. Transport-specific
// errors never escape this package unwrapped.
type Error struct {
	Kind    Kind
	Status  int               // HTTP status for KindServer
	Message string            // human-readable summary
	Fields  map[string]string // per-field validation messages from 4xx bodies
	Err     error             // underlying cause, if any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports whether the server rejected the request as invalid.
// Validation errors belong inline near the offending field, not in a banner.
func (e *Error) Validation() bool {
	return e.Kind == KindServer && e.Status >= 400 && e.Status < 500
}

// Retryable reports whether repeating the same request may succeed.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	case KindServer:
		return e.Status >= 500 || e.Status == http.StatusTooManyRequests
	}
	return false
}

// AsError extracts a *Error from err, wrapping foreign errors as network errors.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return classify(err)
}

// IsCanceled reports whether err is a cancellation rather than a real failure.
func IsCanceled(err error) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == KindCanceled
	}
	return errors.Is(err, context.Canceled)
}

// classify maps a transport error to a Kind.
func classify(err error) *Error {
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Kind: KindCanceled, Message: "request canceled", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Kind: KindTimeout, Message: "request timed out", Err: err}
	}
	return &Error{Kind: KindNetwork, Message: err.Error(), Err: err}
}
