// Package service implements the library's use cases on top of the
// repositories: the lending lifecycle, the catalog, the account
// directory and authentication.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.  Handlers map kinds to HTTP
// status codes; the message is returned to the caller verbatim.
type Kind int

const (
	KindInternal        Kind = iota // unexpected store or runtime failure
	KindValidation                  // missing or malformed input
	KindNotFound                    // referenced entity absent
	KindConflict                    // duplicate unique field or open request
	KindInvalidState                // operation not permitted from current status
	KindForbidden                   // acting account does not own the resource
	KindUnauthenticated             // bad credentials or inactive account
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	case KindForbidden:
		return "forbidden"
	case KindUnauthenticated:
		return "unauthenticated"
	}
	return "internal"
}

// Error is a classified, caller-facing failure.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a service error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
