package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies a failure of the translation round trip
type Kind int

const (
	// KindUnknown is the zero value and never produced on purpose
	KindUnknown Kind = iota
	// KindConnectionUnavailable means there is no live session and reconnecting failed
	KindConnectionUnavailable
	// KindRequestFailed means the stateless translate call was rejected or could not be sent
	KindRequestFailed
	// KindResultUnavailable means the gateway flagged the translation as unsupported
	KindResultUnavailable
	// KindTimeout means a bounded wait expired
	KindTimeout
	// KindMalformedMessage means an inbound payload did not parse or lacked expected fields
	KindMalformedMessage
	// KindBusy means another translation is already in flight on the session
	KindBusy
	// KindEmptyInput means there was nothing to translate
	KindEmptyInput
)

func (k Kind) String() string {
	switch k {
	case KindConnectionUnavailable:
		return "connection_unavailable"
	case KindRequestFailed:
		return "request_failed"
	case KindResultUnavailable:
		return "result_unavailable"
	case KindTimeout:
		return "timeout"
	case KindMalformedMessage:
		return "malformed_message"
	case KindBusy:
		return "busy"
	case KindEmptyInput:
		return "empty_input"
	default:
		return "unknown"
	}
}

// Error is returned by the session client and the dispatcher.
// errors.Is matches any *Error with the same Kind, so callers can compare
// against the Err* sentinels below.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s]", e.Kind)
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates a new Error
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var (
	ErrConnectionUnavailable = &Error{Kind: KindConnectionUnavailable}
	ErrRequestFailed         = &Error{Kind: KindRequestFailed}
	ErrResultUnavailable     = &Error{Kind: KindResultUnavailable}
	ErrTimeout               = &Error{Kind: KindTimeout}
	ErrMalformedMessage      = &Error{Kind: KindMalformedMessage}
	ErrBusy                  = &Error{Kind: KindBusy}
	ErrEmptyInput            = &Error{Kind: KindEmptyInput}
)

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
