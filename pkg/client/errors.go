package client

// ErrorKind categorizes foreground-operation failures.
type ErrorKind int

const (
	// KindValidation: bad input, never retried.
	KindValidation ErrorKind = iota
	// KindState: queue full after forced flush, breaker open, client
	// closed. Recoverable, surfaced as a typed failure.
	KindState
)

// Error is the typed failure returned by foreground operations such as
// TrackEvent. Background failures never surface as errors; they are
// logged and counted.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func validationError(msg string) *Error { return &Error{Kind: KindValidation, Msg: msg} }
func stateError(msg string) *Error      { return &Error{Kind: KindState, Msg: msg} }
