package errext

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/conductor/errext/exitcodes"
)

func TestWithHint(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WithHint(nil, "nothing"))

	base := errors.New("chrome not found")
	err := WithHint(base, "install chromium")
	require.ErrorIs(t, err, base)

	var herr HasHint
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, "install chromium", herr.Hint())

	wrapped := WithHint(fmt.Errorf("launching: %w", err), "set CONDUCTOR_HUB")
	require.True(t, errors.As(wrapped, &herr))
	assert.Equal(t, "set CONDUCTOR_HUB (install chromium)", herr.Hint())
}

func TestWithExitCodeIfNone(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WithExitCodeIfNone(nil, exitcodes.InvalidConfig))

	err := WithExitCodeIfNone(errors.New("bad timeout"), exitcodes.InvalidConfig)
	assert.Equal(t, exitcodes.InvalidConfig, ExitCodeOf(err, exitcodes.AssertionFailed))

	// an existing exit code is kept
	err = WithExitCodeIfNone(err, exitcodes.BrowserSessionFailed)
	assert.Equal(t, exitcodes.InvalidConfig, ExitCodeOf(err, exitcodes.AssertionFailed))

	assert.Equal(t, exitcodes.AssertionFailed, ExitCodeOf(errors.New("x"), exitcodes.AssertionFailed))
}

func TestFormat(t *testing.T) {
	t.Parallel()

	msg, fields := Format(nil)
	assert.Empty(t, msg)
	assert.Nil(t, fields)

	err := WithExitCodeIfNone(WithHint(errors.New("boom"), "try again"), exitcodes.GenericError)
	msg, fields = Format(err)
	assert.Equal(t, "boom", msg)
	assert.Equal(t, "try again", fields["hint"])
	assert.Equal(t, exitcodes.GenericError, fields["exit_code"])
}
