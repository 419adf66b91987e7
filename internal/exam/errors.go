package exam

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrExamNotActive     = errors.New("exam is not in progress")
	ErrUnknownQuestion   = errors.New("unknown question")
	ErrOptionOutOfRange  = errors.New("option index out of range")
	ErrIdentityMissing   = errors.New("candidate identity is missing")
)

// FormValidationError lists the sign-in fields that were rejected, keyed by
// their JSON name.
type FormValidationError struct {
	Fields map[string]string
}

func (e *FormValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Sprintf("invalid sign-in form: %s", strings.Join(names, ", "))
}

// NetworkFailure wraps a failed delivery to the notification sink.
type NetworkFailure struct {
	Err error
}

func (e *NetworkFailure) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *NetworkFailure) Unwrap() error { return e.Err }
