package librarian

import (
	"errors"
	"fmt"
)

// Kind classifies the failures a turn can surface to its caller.
type Kind int

const (
	KindUnknown Kind = iota
	// KindEmptyInput: the message was empty after trimming.
	KindEmptyInput
	// KindUnauthorized: no owner identity was supplied.
	KindUnauthorized
	// KindNotFound: the conversation does not exist for this owner.
	KindNotFound
	// KindUpstreamFailure: a model, moderation, media or storage call failed.
	KindUpstreamFailure
	// KindModerationBlocked is only reported as a Warning on a result.
	KindModerationBlocked
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindEmptyInput:
		return "empty_message"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindUpstreamFailure:
		return "upstream_failure"
	case KindModerationBlocked:
		return "moderation_blocked"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by every Librarian operation.
type Error struct {
	Err     error
	Message string
	Kind    Kind
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func upstream(err error, message string) *Error {
	return &Error{Kind: KindUpstreamFailure, Message: message, Err: err}
}
