package remoteauth

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidAction        ErrorKind = "invalid_action"
	KindInvalidState         ErrorKind = "invalid_state"
	KindOpenRedirectRejected ErrorKind = "open_redirect_rejected"
)

var (
	ErrInvalidAction        = errors.New("invalid action")
	ErrInvalidState         = errors.New("invalid authentication state")
	ErrOpenRedirectRejected = errors.New("return url rejected")
)

// Error is a fatal dispatch fault. None of these are retried; callers
// surface them to their fault boundary.
type Error struct {
	Kind ErrorKind
	// the offending action, status or url
	Value string
	Err   error
}

func newError(kind ErrorKind, value string, err error) *Error {
	return &Error{Kind: kind, Value: value, Err: err}
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindInvalidAction:
		msg = fmt.Sprintf("invalid action '%s'", e.Value)
	case KindInvalidState:
		if e.Value == "" {
			msg = "authentication service returned no result"
		} else {
			msg = fmt.Sprintf("invalid authentication result status '%s'", e.Value)
		}
	case KindOpenRedirectRejected:
		msg = fmt.Sprintf("invalid return url '%s': it must have the same origin as the application", e.Value)
	default:
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Value)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidAction:
		return e.Kind == KindInvalidAction
	case ErrInvalidState:
		return e.Kind == KindInvalidState
	case ErrOpenRedirectRejected:
		return e.Kind == KindOpenRedirectRejected
	}
	return false
}
