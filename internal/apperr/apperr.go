// Package apperr classifies errors crossing package boundaries so callers
// can route them: authorization failures restart the login flow, the rest
// surface to the chat as a single line built from the wrap chain.
package apperr

import (
	"errors"
	"fmt"
)

// Kind partitions errors by what the caller should do about them.
type Kind string

const (
	// Transport covers network-level failures: dial, TLS, timeouts.
	Transport Kind = "transport"

	// Protocol covers well-formed exchanges with unusable payloads:
	// unexpected status codes, missing headers, malformed bodies.
	Protocol Kind = "protocol"

	// Validation covers malformed user input: bad URLs, bad paths,
	// misconfigured sizes.
	Validation Kind = "validation"

	// Authorization covers expired or rejected credentials.
	Authorization Kind = "authorization"

	// NotFound covers missing rows, messages and remote items.
	NotFound Kind = "not_found"

	// Internal covers everything else: bugs, I/O faults, store errors.
	Internal Kind = "internal"
)

// Error is a classified error. The message chain reads
// "failed to X: failed to Y: raw" by convention.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Kind returns the error's classification.
func (e *Error) Kind() Kind {
	return e.kind
}

// New returns a classified error with the given message.
func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap returns a classified error wrapping err with a message prefix.
// A nil err yields nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: err}
}

// Wrapf is Wrap with a formatted message prefix.
func Wrapf(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), err: err}
}

// KindOf returns the classification of the outermost *Error in err's
// chain, or Internal when the chain carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return Internal
}

// IsKind reports whether err's chain carries the given classification.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.kind == kind {
			return true
		}
		err = e.Unwrap()
	}
	return false
}
