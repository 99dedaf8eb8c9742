package common_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/conductor/common"
	"github.com/liuxd6825/conductor/testutils"
	"github.com/liuxd6825/conductor/testutils/browsertest"
)

func twoWindows() *browsertest.Driver {
	return browsertest.New(
		browsertest.Window{Handle: "w1", Title: "Home", URL: "https://example.com/"},
		browsertest.Window{Handle: "w2", Title: "Google Search", URL: "https://www.google.com/search?q=go"},
	)
}

func TestWaitForWindow(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		s := newTestSession(t, d, 3, 5)

		require.NoError(t, s.WaitForWindow(context.Background(), "Google.*"))
		assert.Equal(t, "w2", d.Current())
		assert.Equal(t, []string{"w1", "w2"}, d.Switches())
		assert.Empty(t, s.clock.Sleeps())
		assert.True(t, testutils.LogContains(s.hook.Drain(), logrus.InfoLevel, "switched to window w2"))
		assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.WindowSwitches))
	})

	t.Run("exhausted", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		s := newTestSession(t, d, 3, 5)

		err := s.WaitForWindow(context.Background(), "Yahoo.*")
		var wnf *common.WindowNotFoundError
		require.ErrorAs(t, err, &wnf)
		assert.Equal(t, 3, wnf.Attempts)
		assert.Equal(t, "Yahoo.*", wnf.Pattern)
		assert.Len(t, s.clock.Sleeps(), 2)
		assert.Len(t, d.Switches(), 6)
	})

	t.Run("opens_later", func(t *testing.T) {
		t.Parallel()

		d := browsertest.New(browsertest.Window{Handle: "w1", Title: "Home"})
		s := newTestSession(t, d, 5, 5)
		s.clock.OnSleep = func(n int) {
			if n == 2 {
				d.OpenWindow(browsertest.Window{Handle: "w2", Title: "Popup"})
			}
		}

		require.NoError(t, s.WaitForWindow(context.Background(), "^Popup$"))
		assert.Equal(t, "w2", d.Current())
		assert.Len(t, s.clock.Sleeps(), 2)
	})

	t.Run("matches_url", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		s := newTestSession(t, d, 1, 5)
		require.NoError(t, s.WaitForWindow(context.Background(), `google\.com/search`))
		assert.Equal(t, "w2", d.Current())
	})

	t.Run("vanished_handle_shares_budget", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		d.Vanishing["w2"] = 2
		s := newTestSession(t, d, 2, 5)

		err := s.WaitForWindow(context.Background(), "Google.*")
		var wnf *common.WindowNotFoundError
		require.ErrorAs(t, err, &wnf)
		assert.Equal(t, 2, wnf.Attempts)
		assert.ErrorIs(t, err, common.ErrNoSuchWindow)

		d.Vanishing["w2"] = 1
		require.NoError(t, s.WaitForWindow(context.Background(), "Google.*"))
		assert.Equal(t, "w2", d.Current())
	})

	t.Run("invalid_pattern", func(t *testing.T) {
		t.Parallel()

		s := newTestSession(t, twoWindows(), 3, 5)
		err := s.WaitForWindow(context.Background(), "(")
		require.ErrorContains(t, err, "invalid window pattern")
		assert.False(t, common.IsAssertionFailure(err))
	})

	t.Run("listing_fails", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		d.HandlesErr = errors.New("target crashed")
		s := newTestSession(t, d, 3, 5)

		err := s.WaitForWindow(context.Background(), "Google.*")
		require.ErrorContains(t, err, "target crashed")
		var wnf *common.WindowNotFoundError
		assert.False(t, errors.As(err, &wnf))
		assert.Empty(t, s.clock.Sleeps())
		assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.WaitOutcomes.WithLabelValues("window", "failed")))
		assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.WaitOutcomes.WithLabelValues("window", "exhausted")))
	})
}

func TestSwitchToWindow(t *testing.T) {
	t.Parallel()

	d := twoWindows()
	s := newTestSession(t, d, 3, 5)
	ctx := context.Background()

	require.NoError(t, s.SwitchToWindow(ctx, "^Home$"))
	assert.Equal(t, "w1", d.Current())

	err := s.SwitchToWindow(ctx, "Yahoo")
	var wnf *common.WindowNotFoundError
	require.ErrorAs(t, err, &wnf)
	assert.Equal(t, 1, wnf.Attempts)
	assert.Empty(t, s.clock.Sleeps())
}

func TestCloseWindow(t *testing.T) {
	t.Parallel()

	t.Run("current_of_two", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		s := newTestSession(t, d, 3, 5)
		require.NoError(t, s.SwitchToWindow(context.Background(), "Google"))

		require.NoError(t, s.CloseWindow(context.Background(), ""))
		handles, err := d.WindowHandles(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"w1"}, handles)
		assert.Equal(t, "w1", d.Current())
	})

	t.Run("current_of_three", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		d.OpenWindow(browsertest.Window{Handle: "w3", Title: "Third"})
		s := newTestSession(t, d, 3, 5)

		require.NoError(t, s.CloseWindow(context.Background(), ""))
		assert.Empty(t, d.Current())
	})

	t.Run("pattern_of_two", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		s := newTestSession(t, d, 3, 5)

		require.NoError(t, s.CloseWindow(context.Background(), "Google"))
		handles, err := d.WindowHandles(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"w1"}, handles)
		assert.Equal(t, "w1", d.Current())
	})

	t.Run("pattern_of_three", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		d.OpenWindow(browsertest.Window{Handle: "w3", Title: "Third"})
		s := newTestSession(t, d, 3, 5)

		require.NoError(t, s.CloseWindow(context.Background(), "Google"))
		handles, err := d.WindowHandles(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"w1", "w3"}, handles)
		assert.Empty(t, d.Current())
	})

	t.Run("no_match", func(t *testing.T) {
		t.Parallel()

		d := twoWindows()
		s := newTestSession(t, d, 3, 5)

		err := s.CloseWindow(context.Background(), "Yahoo")
		var wnf *common.WindowNotFoundError
		require.ErrorAs(t, err, &wnf)
		handles, err := d.WindowHandles(context.Background())
		require.NoError(t, err)
		assert.Len(t, handles, 2)
	})
}
