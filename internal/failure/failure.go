// Package failure defines the error taxonomy shared by lcpipe components.
//
// Components wrap one of the sentinels below with fmt.Errorf("...: %w", ...)
// so callers can classify a failure with errors.Is, and the fan-out executor
// can report an (error-kind, error-value) pair for every failed task.
package failure

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfig marks malformed or incomplete configuration: grid bounds,
	// remote client options, backend mode, batch manifests.
	ErrConfig = errors.New("configuration error")

	// ErrNotFound marks a missing input file, remote parent directory or
	// local path.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a path that is occupied by something incompatible
	// with the requested operation.
	ErrConflict = errors.New("conflict")

	// ErrUnsupportedMode is returned for execution backends that are
	// recognised but not implemented.
	ErrUnsupportedMode = errors.New("unsupported mode")

	// ErrTransport marks failures surfaced by an external collaborator
	// (splitter, remote store, ssh).
	ErrTransport = errors.New("transport error")

	// ErrClosed is returned when an executor or backend is used after
	// shutdown.
	ErrClosed = errors.New("closed")
)

// Kind names the category of a failure.
type Kind string

const (
	KindNone            Kind = ""
	KindConfig          Kind = "configuration"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindUnsupportedMode Kind = "unsupported_mode"
	KindTransport       Kind = "transport"
	KindClosed          Kind = "closed"
	KindPanic           Kind = "panic"
	KindCanceled        Kind = "canceled"
	KindUnknown         Kind = "unknown"
)

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// KindOf classifies err. A nil error has KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}

	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		return KindPanic
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUnsupportedMode):
		return KindUnsupportedMode
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrClosed):
		return KindClosed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// Configf returns a configuration error with a formatted message.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

// NotFound returns a not-found error for path.
func NotFound(what, path string) error {
	return fmt.Errorf("%s %s: %w", what, path, ErrNotFound)
}

// Conflict returns a conflict error for path.
func Conflict(path, reason string) error {
	return fmt.Errorf("%s: %s: %w", path, reason, ErrConflict)
}
