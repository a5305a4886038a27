package types

import "errors"

// FatalError marks an unrecoverable condition (resource exhaustion and
// the like). Lifecycle error containment deliberately lets this kind
// escape: actors re-panic on it instead of swallowing it, so the
// process terminates rather than limping on.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps err as unrecoverable.
func Fatal(err error) error {
	return &FatalError{Err: err}
}

// IsFatal reports whether err (or anything it wraps) is unrecoverable.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
