package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	NotFound          Kind = "not_found"
	SourceUnavailable Kind = "source_unavailable"
	InvalidInput      Kind = "invalid_input"
	StaleReference    Kind = "stale_reference"
)

// Error is a classified failure. Source names the logical record set that
// produced it and OwnerID the identifier being looked up, when known.
type Error struct {
	Kind    Kind
	Source  string
	OwnerID string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Source != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Source)
	}
	if e.OwnerID != "" {
		msg = fmt.Sprintf("%s (owner %s)", msg, e.OwnerID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, source, ownerID string, err error) *Error {
	return &Error{Kind: kind, Source: source, OwnerID: ownerID, Err: err}
}

func Unavailable(source, ownerID string, err error) *Error {
	return New(SourceUnavailable, source, ownerID, err)
}

func Invalid(source, msg string) *Error {
	return New(InvalidInput, source, "", errors.New(msg))
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
