// Package errs contains the error taxonomy shared across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every error produced by this module unwraps to exactly one of them.
var (
	// ErrArgument indicates malformed input (bad path shape, missing fields).
	ErrArgument = errors.New("Argument error")

	// ErrForbidden indicates the authenticated user does not own the path.
	ErrForbidden = errors.New("Forbidden")

	// ErrNotFound indicates the referenced metadata entry does not exist.
	ErrNotFound = errors.New("Not found")

	// ErrConflict indicates the file already exists.
	ErrConflict = errors.New("Conflict")

	// ErrServer indicates a backend failure, a broken invariant or a transient race.
	ErrServer = errors.New("Server error")
)

// Kind discriminators exposed to callers.
const (
	KindArgument  = "ArgumentError"
	KindForbidden = "ForbiddenError"
	KindNotFound  = "NotFoundError"
	KindConflict  = "ConflictError"
	KindServer    = "ServerError"
)

// Error is a classified error carrying a caller-safe message.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.kind, e.msg) }

// Unwrap returns the kind sentinel so errors.Is works against it.
func (e *Error) Unwrap() error { return e.kind }

// Message returns the message without the kind prefix.
func (e *Error) Message() string { return e.msg }

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Argument builds an ArgumentError.
func Argument(format string, args ...any) error { return newError(ErrArgument, format, args...) }

// Forbidden builds a ForbiddenError.
func Forbidden(format string, args ...any) error { return newError(ErrForbidden, format, args...) }

// NotFound builds a NotFoundError.
func NotFound(format string, args ...any) error { return newError(ErrNotFound, format, args...) }

// Conflict builds a ConflictError.
func Conflict(format string, args ...any) error { return newError(ErrConflict, format, args...) }

// Server builds a ServerError. Messages must stay generic: no backend details.
func Server(format string, args ...any) error { return newError(ErrServer, format, args...) }

// KindOf returns the discriminator of err, or "" if err is not classified.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrArgument):
		return KindArgument
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrServer):
		return KindServer
	default:
		return ""
	}
}

// Sanitize returns classified errors unchanged and replaces anything else
// with a generic ServerError.
func Sanitize(err error) error {
	if err == nil || KindOf(err) != "" {
		return err
	}
	return Server("internal error")
}
