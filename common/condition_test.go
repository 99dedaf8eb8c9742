package common_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/conductor/common"
	"github.com/liuxd6825/conductor/testutils/browsertest"
)

func TestWaitForCondition(t *testing.T) {
	t.Parallel()

	t.Run("holds", func(t *testing.T) {
		t.Parallel()

		s := newTestSession(t, browsertest.New(), 1, 10)
		evals := 0
		err := s.WaitForCondition(context.Background(), func(context.Context, common.Driver) (bool, error) {
			evals++
			return evals == 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, evals)
		assert.Equal(t, []time.Duration{time.Second, time.Second}, s.clock.Sleeps())
	})

	t.Run("times_out", func(t *testing.T) {
		t.Parallel()

		s := newTestSession(t, browsertest.New(), 1, 3)
		evals := 0
		err := s.WaitForCondition(context.Background(), func(context.Context, common.Driver) (bool, error) {
			evals++
			return false, nil
		}, common.WithDescription("the moon"))

		var terr *common.ConditionTimeoutError
		require.ErrorAs(t, err, &terr)
		assert.Equal(t, 3*time.Second, terr.Timeout)
		assert.Equal(t, "the moon", terr.Description)
		assert.Equal(t, 4, evals)
		assert.True(t, common.IsAssertionFailure(err))
	})

	t.Run("bounded_by_time_not_evaluations", func(t *testing.T) {
		t.Parallel()

		s := newTestSession(t, browsertest.New(), 100, 3)
		evals := 0
		err := s.WaitForCondition(context.Background(), func(context.Context, common.Driver) (bool, error) {
			evals++
			s.clock.Advance(2 * time.Second)
			return false, nil
		})
		require.Error(t, err)
		assert.Equal(t, 2, evals)
		assert.Equal(t, []time.Duration{time.Second}, s.clock.Sleeps())
	})

	t.Run("predicate_error_is_cause", func(t *testing.T) {
		t.Parallel()

		fault := errors.New("detached")
		s := newTestSession(t, browsertest.New(), 1, 5)
		err := s.WaitForCondition(context.Background(), func(context.Context, common.Driver) (bool, error) {
			return true, fault
		}, common.WithTimeout(2*time.Second), common.WithPollInterval(500*time.Millisecond))

		var terr *common.ConditionTimeoutError
		require.ErrorAs(t, err, &terr)
		assert.ErrorIs(t, err, fault)
		assert.Len(t, s.clock.Sleeps(), 4)
	})

	t.Run("zero_timeout_evaluates_once", func(t *testing.T) {
		t.Parallel()

		s := newTestSession(t, browsertest.New(), 1, 0)
		evals := 0
		err := s.WaitForCondition(context.Background(), func(context.Context, common.Driver) (bool, error) {
			evals++
			return false, nil
		})
		require.Error(t, err)
		assert.Equal(t, 1, evals)
		assert.Empty(t, s.clock.Sleeps())
	})

	t.Run("canceled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s := newTestSession(t, browsertest.New(), 1, 5)
		err := s.WaitForCondition(ctx, func(context.Context, common.Driver) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestConditions(t *testing.T) {
	t.Parallel()

	t.Run("element_displayed", func(t *testing.T) {
		t.Parallel()

		el := browsertest.NewElement("div", "")
		el.HiddenFor = 2
		s := newTestSession(t, browsertest.New(), 1, 5)
		require.NoError(t, s.WaitForCondition(context.Background(), common.ElementDisplayed(el)))
		assert.Len(t, s.clock.Sleeps(), 2)
	})

	t.Run("element_enabled", func(t *testing.T) {
		t.Parallel()

		el := browsertest.NewElement("button", "")
		el.Enabled = false
		s := newTestSession(t, browsertest.New(), 1, 2)
		err := s.WaitForCondition(context.Background(), common.ElementEnabled(el))
		var terr *common.ConditionTimeoutError
		require.ErrorAs(t, err, &terr)
	})

	t.Run("url_and_title", func(t *testing.T) {
		t.Parallel()

		d := browsertest.New(browsertest.Window{Handle: "w1", Title: "Checkout", URL: "https://shop.test/cart"})
		s := newTestSession(t, d, 1, 1)
		ctx := context.Background()
		require.NoError(t, s.WaitForCondition(ctx, common.URLMatches(regexp.MustCompile(`/cart$`))))
		require.NoError(t, s.WaitForCondition(ctx, common.TitleMatches(regexp.MustCompile(`^Check`))))
		require.Error(t, s.WaitForCondition(ctx, common.TitleMatches(regexp.MustCompile(`^Home`))))
	})
}
