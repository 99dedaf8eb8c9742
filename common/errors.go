package common

import (
	"errors"
	"fmt"
	"time"

	"github.com/liuxd6825/conductor/errext/exitcodes"
)

// assertionFailure marks the errors that fail a single test rather than
// the whole run.
type assertionFailure interface {
	error
	assertionFailure()
}

// IsAssertionFailure reports whether err, or any error it wraps, is a
// test assertion failure.
func IsAssertionFailure(err error) bool {
	var af assertionFailure
	return errors.As(err, &af)
}

// ElementNotFoundError is returned when a locator matched nothing within
// the attempt budget.
type ElementNotFoundError struct {
	Locator  Locator
	Attempts int
	// Err is the last driver fault seen while polling, if any.
	Err error
}

func (e *ElementNotFoundError) Error() string {
	msg := fmt.Sprintf("element %s not found after %d attempts", e.Locator, e.Attempts)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ElementNotFoundError) Unwrap() error { return e.Err }
func (*ElementNotFoundError) assertionFailure() {}

// ConditionTimeoutError is returned when a condition did not hold before
// its timeout.
type ConditionTimeoutError struct {
	Description string
	Timeout     time.Duration
	// Err is the last error returned by the predicate, if any.
	Err error
}

func (e *ConditionTimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.Description)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConditionTimeoutError) Unwrap() error { return e.Err }
func (*ConditionTimeoutError) assertionFailure() {}

// WindowNotFoundError is returned when no window matched a pattern.
type WindowNotFoundError struct {
	Pattern  string
	Attempts int
	Err      error
}

func (e *WindowNotFoundError) Error() string {
	msg := fmt.Sprintf("no window matching %q", e.Pattern)
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *WindowNotFoundError) Unwrap() error { return e.Err }
func (*WindowNotFoundError) assertionFailure() {}

// FrameSwitchFailedError is returned when the driver could not enter a
// frame.
type FrameSwitchFailedError struct {
	Frame FrameRef
	Err   error
}

func (e *FrameSwitchFailedError) Error() string {
	return fmt.Sprintf("switching to frame %s: %v", e.Frame, e.Err)
}

func (e *FrameSwitchFailedError) Unwrap() error { return e.Err }
func (*FrameSwitchFailedError) assertionFailure() {}

// AssertionError is returned by the Validate actions.
type AssertionError struct {
	Message  string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %q, got %q", e.Message, e.Expected, e.Actual)
}

func (*AssertionError) assertionFailure() {}

// SessionError is returned when no browser session could be acquired.
// It is fatal to the whole run.
type SessionError struct {
	Browser string
	Hub     string
	Err     error
}

func (e *SessionError) Error() string {
	if e.Hub != "" {
		return fmt.Sprintf("connecting to %s browser at %s: %v", e.Browser, e.Hub, e.Err)
	}
	return fmt.Sprintf("launching %s browser: %v", e.Browser, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// ExitCode implements errext.HasExitCode.
func (*SessionError) ExitCode() exitcodes.ExitCode { return exitcodes.BrowserSessionFailed }

// Hint implements errext.HasHint.
func (e *SessionError) Hint() string {
	if e.Hub != "" {
		return "check that the hub address is reachable and accepts " + e.Browser + " sessions"
	}
	return "check that a " + e.Browser + " binary is installed, or set CONDUCTOR_HUB to use a remote browser"
}
