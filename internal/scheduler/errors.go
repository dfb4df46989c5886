package scheduler

import (
	"errors"
	"strings"
)

// ErrInvalidFilter matches any *InvalidFilterError via errors.Is.
var ErrInvalidFilter = errors.New("scheduler: invalid filter")

// InvalidFilterError reports malformed or incomplete query input.
type InvalidFilterError struct {
	Reasons []string
}

// Error implements the error interface.
func (e *InvalidFilterError) Error() string {
	if e == nil || len(e.Reasons) == 0 {
		return ErrInvalidFilter.Error()
	}
	return ErrInvalidFilter.Error() + ": " + strings.Join(e.Reasons, "; ")
}

// Is lets callers test for ErrInvalidFilter.
func (e *InvalidFilterError) Is(target error) bool {
	return target == ErrInvalidFilter
}

func (e *InvalidFilterError) add(reason string) {
	e.Reasons = append(e.Reasons, reason)
}

func (e *InvalidFilterError) orNil() error {
	if len(e.Reasons) == 0 {
		return nil
	}
	return e
}
