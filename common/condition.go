package common

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Condition reports whether the browser reached some state. An error
// means the state could not be read this time and is treated like false.
type Condition func(ctx context.Context, d Driver) (bool, error)

type conditionOptions struct {
	timeout      time.Duration
	pollInterval time.Duration
	description  string
}

// ConditionOption configures WaitForCondition.
type ConditionOption func(*conditionOptions)

// WithTimeout overrides the configured timeout of the wait.
func WithTimeout(d time.Duration) ConditionOption {
	return func(o *conditionOptions) { o.timeout = d }
}

// WithPollInterval sets how long to wait between two evaluations.
func WithPollInterval(d time.Duration) ConditionOption {
	return func(o *conditionOptions) { o.pollInterval = d }
}

// WithDescription names the condition in errors and logs.
func WithDescription(desc string) ConditionOption {
	return func(o *conditionOptions) { o.description = desc }
}

// WaitForCondition evaluates cond at once and then every poll interval
// until it holds. It fails with a *ConditionTimeoutError once the timeout
// has elapsed since the wait started. The number of evaluations does not
// matter, only the elapsed time.
func (s *Session) WaitForCondition(ctx context.Context, cond Condition, opts ...ConditionOption) error {
	const wait = "condition"

	o := conditionOptions{
		timeout:      s.config.Timeout(),
		pollInterval: DefaultPollInterval,
		description:  "condition",
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := s.startSpan(ctx, "session.waitForCondition",
		attribute.String("condition", o.description),
		attribute.String("timeout", o.timeout.String()),
	)
	defer span.End()

	start := s.clock.Now()
	var lastErr error
	for evals := 1; ; evals++ {
		s.metrics.attempt(wait)
		ok, err := cond(ctx, s.driver)
		if cerr := ctx.Err(); cerr != nil {
			s.metrics.finish(wait, outcomeCanceled, s.clock.Now().Sub(start).Seconds())
			return spanRecordError(span, cerr)
		}
		if err == nil && ok {
			elapsed := s.clock.Now().Sub(start)
			s.metrics.finish(wait, outcomeFound, elapsed.Seconds())
			s.logger.Debugf("Session:WaitForCondition", "%s held after %d evaluations in %s", o.description, evals, elapsed)
			return nil
		}
		if err != nil {
			lastErr = err
		}

		elapsed := s.clock.Now().Sub(start)
		remaining := o.timeout - elapsed
		if remaining <= 0 {
			s.metrics.finish(wait, outcomeExhausted, elapsed.Seconds())
			return spanRecordError(span, &ConditionTimeoutError{
				Description: o.description,
				Timeout:     o.timeout,
				Err:         lastErr,
			})
		}
		sleep := o.pollInterval
		if sleep > remaining {
			sleep = remaining
		}
		if err := s.clock.Sleep(ctx, sleep); err != nil {
			s.metrics.finish(wait, outcomeCanceled, s.clock.Now().Sub(start).Seconds())
			return spanRecordError(span, err)
		}
	}
}

// ElementDisplayed holds once el is visible.
func ElementDisplayed(el Element) Condition {
	return func(ctx context.Context, _ Driver) (bool, error) {
		return el.IsDisplayed(ctx)
	}
}

// ElementEnabled holds once el is visible and enabled, that is once it
// can be clicked.
func ElementEnabled(el Element) Condition {
	return func(ctx context.Context, _ Driver) (bool, error) {
		visible, err := el.IsDisplayed(ctx)
		if err != nil || !visible {
			return false, err
		}
		return el.IsEnabled(ctx)
	}
}

// URLMatches holds once the URL of the current window matches re.
func URLMatches(re *regexp.Regexp) Condition {
	return func(ctx context.Context, d Driver) (bool, error) {
		u, err := d.CurrentURL(ctx)
		if err != nil {
			return false, fmt.Errorf("reading URL: %w", err)
		}
		return re.MatchString(u), nil
	}
}

// TitleMatches holds once the title of the current window matches re.
func TitleMatches(re *regexp.Regexp) Condition {
	return func(ctx context.Context, d Driver) (bool, error) {
		t, err := d.Title(ctx)
		if err != nil {
			return false, fmt.Errorf("reading title: %w", err)
		}
		return re.MatchString(t), nil
	}
}
