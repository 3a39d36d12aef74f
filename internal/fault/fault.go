// Package fault defines the error kinds shared by the ingestion pipeline,
// the analytics engine and the query tools.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can react without string matching.
type Kind string

const (
	KindUpstream         Kind = "upstream"
	KindNotFound         Kind = "not_found"
	KindMalformedPayload Kind = "malformed_payload"
	KindValidation       Kind = "validation"
	KindInsufficientData Kind = "insufficient_data"
	KindInternal         Kind = "internal"
)

// Error is a classified failure. Status is only set for upstream errors.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Kind == KindUpstream && e.Status != 0 {
		msg = fmt.Sprintf("status %d: %s", e.Status, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Upstream reports a transport, auth or server failure from the match data source.
func Upstream(status int, message string) *Error {
	return &Error{Kind: KindUpstream, Status: status, Message: message}
}

// UpstreamWrap reports a transport failure with no HTTP status.
func UpstreamWrap(err error, message string) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Malformed(format string, args ...any) *Error {
	return &Error{Kind: KindMalformedPayload, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func InsufficientData(format string, args ...any) *Error {
	return &Error{Kind: KindInsufficientData, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human readable part of err without the kind prefix.
func Message(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Err != nil {
			return fmt.Sprintf("%s: %v", fe.Message, fe.Err)
		}
		return fe.Message
	}
	return err.Error()
}
