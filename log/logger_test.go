package log

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/conductor/testutils"
)

func newHookedLogger(tb testing.TB) (*Logger, *testutils.SimpleLogrusHook) {
	tb.Helper()

	hook := testutils.NewLogHook()
	l := NewNullLogger()
	l.Log.SetLevel(logrus.DebugLevel)
	l.Log.AddHook(hook)
	return l, hook
}

func TestLoggerCategoryFilter(t *testing.T) {
	t.Parallel()

	l, hook := newHookedLogger(t)
	require.NoError(t, l.SetCategoryFilter("^Session:"))

	l.Debugf("Session:WaitForWindow", "attempt %d/%d", 1, 5)
	l.Debugf("chromium:Launch", "dropped")

	entries := hook.Drain()
	require.Len(t, entries, 1)
	assert.Equal(t, "attempt 1/5", entries[0].Message)
	assert.Equal(t, "Session:WaitForWindow", entries[0].Data["category"])

	require.Error(t, l.SetCategoryFilter("("))
	require.NoError(t, l.SetCategoryFilter(""))
	l.Debugf("chromium:Launch", "kept")
	assert.Equal(t, []string{"kept"}, hook.Lines())
}

func TestLoggerLevel(t *testing.T) {
	t.Parallel()

	l, hook := newHookedLogger(t)
	require.NoError(t, l.SetLevel("warning"))
	assert.False(t, l.DebugMode())

	l.Debugf("cat", "hidden")
	l.Warnf("cat", "shown %s", "warn")
	assert.Equal(t, []string{"shown warn"}, hook.Lines())

	err := l.SetLevel("loud")
	require.EqualError(t, err, "unknown log level loud")
}

func TestLoggerWith(t *testing.T) {
	t.Parallel()

	l, hook := newHookedLogger(t)
	sl := l.With(logrus.Fields{"session": "s1"})
	sl.Infof("Session:Close", "released")

	e := hook.LastEntry()
	require.NotNil(t, e)
	assert.Equal(t, "s1", e.Data["session"])
	assert.Equal(t, "Session:Close", e.Data["category"])

	var nilLogger *Logger
	assert.Nil(t, nilLogger.With(logrus.Fields{"a": 1}))
	nilLogger.Infof("cat", "does not panic")
}
