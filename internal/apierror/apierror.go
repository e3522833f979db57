package apierror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and metrics.
type Kind string

const (
	KindNetworkTimeout       Kind = "network-timeout"
	KindNetworkUnreachable   Kind = "network-unreachable"
	KindCircuitOpen          Kind = "circuit-open"
	KindAllBackendsExhausted Kind = "all-backends-exhausted"
	KindStaleCacheServed     Kind = "stale-cache-served"
	KindConfigurationInvalid Kind = "configuration-invalid"
	KindBackendStatus        Kind = "backend-status"
	KindRequestRejected      Kind = "request-rejected"
)

// Sentinels for errors.Is matching against a kind.
var (
	ErrNetworkTimeout       = &Error{Kind: KindNetworkTimeout}
	ErrNetworkUnreachable   = &Error{Kind: KindNetworkUnreachable}
	ErrCircuitOpen          = &Error{Kind: KindCircuitOpen}
	ErrAllBackendsExhausted = &Error{Kind: KindAllBackendsExhausted}
	ErrStaleCacheServed     = &Error{Kind: KindStaleCacheServed}
	ErrConfigurationInvalid = &Error{Kind: KindConfigurationInvalid}
	ErrBackendStatus        = &Error{Kind: KindBackendStatus}
	ErrRequestRejected      = &Error{Kind: KindRequestRejected}
)

// Error is the typed error returned by the client.
type Error struct {
	Kind       Kind
	Target     string
	Message    string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Target != "" {
		msg += " (target " + e.Target + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the adapter should advance to the next target.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetworkTimeout, KindNetworkUnreachable, KindCircuitOpen, KindBackendStatus:
		return true
	default:
		return false
	}
}

func NetworkTimeout(target string, err error) *Error {
	return &Error{Kind: KindNetworkTimeout, Target: target, Message: "request timed out", Err: err}
}

func NetworkUnreachable(target string, err error) *Error {
	return &Error{Kind: KindNetworkUnreachable, Target: target, Message: "backend unreachable", Err: err}
}

func CircuitOpen(target string) *Error {
	return &Error{Kind: KindCircuitOpen, Target: target, Message: "circuit breaker is open"}
}

func AllBackendsExhausted(attempted int, last error) *Error {
	return &Error{
		Kind:    KindAllBackendsExhausted,
		Message: fmt.Sprintf("no backend served the request after %d candidates", attempted),
		Err:     last,
	}
}

func StaleCacheServed(key string) *Error {
	return &Error{Kind: KindStaleCacheServed, Message: "served cached response for " + key}
}

func ConfigurationInvalid(msg string, err error) *Error {
	return &Error{Kind: KindConfigurationInvalid, Message: msg, Err: err}
}

func BackendStatus(target string, status int) *Error {
	return &Error{
		Kind:       KindBackendStatus,
		Target:     target,
		StatusCode: status,
		Message:    fmt.Sprintf("backend returned status %d", status),
	}
}

// ResponseTooLarge is a backend-status failure: the body went over limit and
// was discarded rather than cut.
func ResponseTooLarge(target string, limit int64) *Error {
	return &Error{
		Kind:    KindBackendStatus,
		Target:  target,
		Message: fmt.Sprintf("response body exceeds %d bytes", limit),
	}
}

func RequestRejected(target string, status int) *Error {
	return &Error{
		Kind:       KindRequestRejected,
		Target:     target,
		StatusCode: status,
		Message:    fmt.Sprintf("backend rejected the request with status %d", status),
	}
}
