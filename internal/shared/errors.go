package shared

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrTimeout         = fmt.Errorf("operation timed out")

	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Normalized error kinds. An [*Error] matches the sentinel of its [Kind] with [errors.Is].
	ErrUnknown                = fmt.Errorf("unknown error")
	ErrUnauthenticated        = fmt.Errorf("unauthenticated")
	ErrUnauthorized           = fmt.Errorf("unauthorized")
	ErrNotFound               = fmt.Errorf("not found")
	ErrNetwork                = fmt.Errorf("network error")
	ErrPersistenceWriteFailed = fmt.Errorf("persistence write failed")
	ErrPersistenceReadFailed  = fmt.Errorf("persistence read failed")
)

// Kind classifies a failure for display and branching.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthenticated
	KindUnauthorized
	KindNotFound
	KindNetwork
	KindPersistenceWrite
	KindPersistenceRead
)

func (k Kind) String() string {
	switch k {
	case KindUnauthenticated:
		return "unauthenticated"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindNetwork:
		return "network_error"
	case KindPersistenceWrite:
		return "persistence_write_failed"
	case KindPersistenceRead:
		return "persistence_read_failed"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindUnauthenticated:
		return ErrUnauthenticated
	case KindUnauthorized:
		return ErrUnauthorized
	case KindNotFound:
		return ErrNotFound
	case KindNetwork:
		return ErrNetwork
	case KindPersistenceWrite:
		return ErrPersistenceWriteFailed
	case KindPersistenceRead:
		return ErrPersistenceReadFailed
	default:
		return ErrUnknown
	}
}

// Error is the normalized failure returned across package boundaries.
//
// Message is safe to show to a user. The underlying cause is kept in Err for diagnostics
// and is reachable through [errors.Unwrap] but never rendered by [Error.Error].
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

// NewError builds an [*Error]. An empty message falls back to the default text for kind.
func NewError(kind Kind, op, message string, cause error) *Error {
	if message == "" {
		message = defaultMessage(kind)
	}
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Cause returns the diagnostic cause, if any.
func (e *Error) Cause() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Detail renders the message together with op and cause for logs.
func (e *Error) Detail() string {
	s := e.Message
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Err != nil {
		s = fmt.Sprintf("%s (%v)", s, e.Err)
	}
	return s
}

// Normalize converts any error into an [*Error].
//
// Errors that are already normalized keep their kind and message; op is only filled in when missing.
// Context cancellation and [net.Error] values become [KindNetwork]. Everything else is [KindUnknown].
func Normalize(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Op == "" && op != "" {
			cp := *e
			cp.Op = op
			return &cp
		}
		return e
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(KindNetwork, op, "The request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewError(KindNetwork, op, "The request was cancelled", err)
	case errors.As(err, &netErr):
		return NewError(KindNetwork, op, "", err)
	}
	return NewError(KindUnknown, op, "", err)
}

// KindOf returns the [Kind] of err, or [KindUnknown] when err is not normalized.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the user-facing message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return Normalize("", err).Message
}

func defaultMessage(k Kind) string {
	switch k {
	case KindUnauthenticated:
		return "User not authenticated"
	case KindUnauthorized:
		return "Permission denied"
	case KindNotFound:
		return "Requested item was not found"
	case KindNetwork:
		return "Network error, please check your connection"
	case KindPersistenceWrite:
		return "Failed to save data"
	case KindPersistenceRead:
		return "Failed to load data"
	default:
		return "An unexpected error occurred"
	}
}
