package errext

import "errors"

// HasHint is a wrapper around an error with an attached user hint. These hints
// give extra human-readable information about the error, including
// suggestions on how it can be fixed, e.g. how to install a missing browser
// binary or which variable holds a bad value.
type HasHint interface {
	error
	Hint() string
}

// WithHint is a helper that attaches a hint to the given error. If there is
// no error (i.e. the given error is nil), it won't do anything. If the given
// error already had a hint, the new one wraps it so that Hint() reads
// "new hint (old hint)".
func WithHint(err error, hint string) error {
	if err == nil {
		return nil // No error, do nothing
	}
	return withHint{err, hint}
}

type withHint struct {
	error
	hint string
}

func (wh withHint) Unwrap() error {
	return wh.error
}

func (wh withHint) Hint() string {
	var inner HasHint
	if errors.As(wh.error, &inner) {
		// The wrapped error already had a hint, keep it in parentheses
		return wh.hint + " (" + inner.Hint() + ")"
	}
	return wh.hint
}

var _ HasHint = withHint{}
