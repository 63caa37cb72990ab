package attendance

import (
	"errors"
	"fmt"
)

// Error kinds signalled by the engine and the service. Callers match with errors.Is;
// none of them is transient, so they must not be retried.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation error")
)

// Error carries a user facing message and one of the kinds above.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Kind }

func notFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf(format, args...)}
}

func invalidTransition(msg string) error {
	return &Error{Kind: ErrInvalidTransition, Msg: msg}
}

func invalid(format string, args ...any) error {
	return &Error{Kind: ErrValidation, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf builds an ErrNotFound error for callers outside the package.
func NotFoundf(format string, args ...any) error { return notFound(format, args...) }

// Invalidf builds an ErrValidation error for callers outside the package.
func Invalidf(format string, args ...any) error { return invalid(format, args...) }
