package api

import "errors"

// ErrNotModified signals a logical 304: the cached snapshot is current.
// It is an outcome, not a failure; callers must not feed it to the
// circuit breaker.
var ErrNotModified = errors.New("not modified")

// ErrorKind categorizes failures per the retry policy they deserve.
type ErrorKind int

const (
	// KindNetwork covers timeouts, refused connections and non-2xx
	// statuses; retried via the resilience machinery.
	KindNetwork ErrorKind = iota
	// KindValidation covers malformed inputs; never retried.
	KindValidation
	// KindSerialization covers encode/decode failures; the payload is
	// dropped since it cannot be retried in corrupted form.
	KindSerialization
)

// Error is the typed failure returned by API calls.
type Error struct {
	Kind      ErrorKind
	Op        string
	Err       error
	retryable bool
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient network failure worth
// another attempt.
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.retryable
	}
	return false
}
