package fault

import (
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by ofdcrypt matches exactly one of
// these through errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrPathTraversal     = errors.New("path escapes destination root")
	ErrCapacityExceeded  = errors.New("decompressed size exceeds budget")
	ErrCipherFailure     = errors.New("cipher failure")
	ErrIOFailure         = errors.New("io failure")
	ErrWorkspaceTeardown = errors.New("workspace teardown failed")
	ErrClosed            = errors.New("pipeline already closed")
)

// ErrIllegalState is returned when the cipher engine or a pipeline is
// driven through an invalid transition. It is a cipher failure.
var ErrIllegalState = fmt.Errorf("%w: illegal state transition", ErrCipherFailure)

// Error attaches the operation and container path to a failure kind.
type Error struct {
	Kind error  // One of the Err* kinds above
	Op   string // "extract", "encrypt", "pack", ...
	Path string // Entry name or file path, if applicable
	Err  error  // Underlying error, may be nil
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New creates a new *Error.
func New(kind error, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// IO wraps a filesystem error as ErrIOFailure. A nil err yields nil.
func IO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrIOFailure, Op: op, Path: path, Err: err}
}

// Invalid creates an ErrInvalidArgument with a message.
func Invalid(op, format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrInvalidArgument,
		ErrPathTraversal,
		ErrCapacityExceeded,
		ErrCipherFailure,
		ErrIOFailure,
		ErrWorkspaceTeardown,
		ErrClosed,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
