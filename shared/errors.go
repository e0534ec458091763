package shared

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	ValidationError ErrorKind = "validation"
	GatewayError    ErrorKind = "gateway"
	AuthError       ErrorKind = "auth"
	FetchError      ErrorKind = "fetch"
	UploadError     ErrorKind = "upload"
)

var (
	// ErrNotFound is returned when an owner-scoped read or write matched no row.
	// It does not distinguish a missing row from a row owned by someone else.
	ErrNotFound = errors.New("record not found")

	ErrInvalidCredentials = errors.New("email/password is invalid")
	ErrSessionRevoked     = errors.New("session is no longer valid")
	ErrForbidden          = errors.New("action is forbidden")
)

// Error is the single error type crossing component boundaries.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with a kind and the operation that produced it. A nil err gives nil.
func E(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func Validationf(op, format string, args ...interface{}) error {
	return &Error{Kind: ValidationError, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Message returns the human readable message shown to a user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Err.Error()
	}
	return err.Error()
}
