package orchestrators

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// InputError marks a failure the visitor can fix by changing what they submitted.
// Handlers show it on the page; any other error is internal.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

func invalid(err error) error {
	return &InputError{Err: err}
}

// IsInputError reports whether err, or anything it wraps, is an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

func newID(gen func() string) string {
	if gen == nil {
		return uuid.New().String()
	}
	return gen()
}
