package common

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
)

// windowScan is the result of one pass over the open windows.
type windowScan struct {
	handle string
	found  bool
	// transient is the last vanished-window fault seen during the pass.
	transient error
}

func compileWindowPattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid window pattern %q: %w", pattern, err)
	}
	return re, nil
}

// SwitchToWindow switches into the first window, in enumeration order,
// whose title or else URL matches pattern. Every candidate window is
// switched into while it is being checked, so on failure the driver is
// left on the last window checked.
func (s *Session) SwitchToWindow(ctx context.Context, pattern string) error {
	ctx, span := s.startSpan(ctx, "session.switchToWindow", attribute.String("pattern", pattern))
	defer span.End()

	re, err := compileWindowPattern(pattern)
	if err != nil {
		return spanRecordError(span, err)
	}
	scan, err := s.scanWindows(ctx, re)
	if err != nil {
		return spanRecordError(span, err)
	}
	if !scan.found {
		return spanRecordError(span, &WindowNotFoundError{Pattern: pattern, Attempts: 1, Err: scan.transient})
	}
	s.logger.Infof("Session:SwitchToWindow", "switched to window %s matching %q", scan.handle, pattern)
	return nil
}

// WaitForWindow is like SwitchToWindow but tolerates the window not being
// open yet. It rescans once per poll interval until the retries budget of
// the session is spent. Windows closing during a scan count against the
// same budget.
func (s *Session) WaitForWindow(ctx context.Context, pattern string) error {
	const wait = "window"

	ctx, span := s.startSpan(ctx, "session.waitForWindow", attribute.String("pattern", pattern))
	defer span.End()

	re, err := compileWindowPattern(pattern)
	if err != nil {
		return spanRecordError(span, err)
	}

	start := s.clock.Now()
	counter := newAttemptCounter(s.config.Retries())
	for {
		attempt := counter.next()
		s.metrics.attempt(wait)

		scan, err := s.scanWindows(ctx, re)
		if cerr := ctx.Err(); cerr != nil {
			s.metrics.finish(wait, outcomeCanceled, s.clock.Now().Sub(start).Seconds())
			return spanRecordError(span, cerr)
		}
		if err != nil {
			s.metrics.finish(wait, outcomeFailed, s.clock.Now().Sub(start).Seconds())
			return spanRecordError(span, err)
		}
		if scan.found {
			s.metrics.finish(wait, outcomeFound, s.clock.Now().Sub(start).Seconds())
			s.logger.Infof("Session:WaitForWindow", "switched to window %s matching %q on attempt %d/%d",
				scan.handle, pattern, attempt, counter.budget)
			return nil
		}
		if counter.exhausted() {
			s.metrics.finish(wait, outcomeExhausted, s.clock.Now().Sub(start).Seconds())
			return spanRecordError(span, &WindowNotFoundError{Pattern: pattern, Attempts: attempt, Err: scan.transient})
		}
		s.logger.Debugf("Session:WaitForWindow", "no window matching %q, attempt %d/%d", pattern, attempt, counter.budget)
		if err := s.clock.Sleep(ctx, DefaultPollInterval); err != nil {
			s.metrics.finish(wait, outcomeCanceled, s.clock.Now().Sub(start).Seconds())
			return spanRecordError(span, err)
		}
	}
}

// CloseWindow closes a window. With an empty pattern the current window
// is closed, and if a single window is left the driver switches into it.
// Otherwise the first window whose title or else URL matches pattern is
// closed; if there were exactly two windows the driver switches into the
// other one. With more windows the driver is left without a current
// window.
func (s *Session) CloseWindow(ctx context.Context, pattern string) error {
	ctx, span := s.startSpan(ctx, "session.closeWindow", attribute.String("pattern", pattern))
	defer span.End()

	if pattern == "" {
		if err := s.driver.CloseWindow(ctx); err != nil {
			return spanRecordError(span, fmt.Errorf("closing current window: %w", err))
		}
		s.logger.Infof("Session:CloseWindow", "closed current window")
		return spanRecordError(span, s.switchToSurvivor(ctx, 1))
	}

	re, err := compileWindowPattern(pattern)
	if err != nil {
		return spanRecordError(span, err)
	}
	handles, err := s.driver.WindowHandles(ctx)
	if err != nil {
		return spanRecordError(span, fmt.Errorf("listing windows: %w", err))
	}
	before := len(handles)
	scan, err := s.scanHandles(ctx, handles, re)
	if err != nil {
		return spanRecordError(span, err)
	}
	if !scan.found {
		return spanRecordError(span, &WindowNotFoundError{Pattern: pattern, Attempts: 1, Err: scan.transient})
	}
	if err := s.driver.CloseWindow(ctx); err != nil {
		return spanRecordError(span, fmt.Errorf("closing window %s: %w", scan.handle, err))
	}
	s.logger.Infof("Session:CloseWindow", "closed window %s matching %q", scan.handle, pattern)
	if before != 2 {
		return nil
	}
	return spanRecordError(span, s.switchToSurvivor(ctx, 1))
}

// switchToSurvivor switches into the remaining window when exactly want
// windows are left open.
func (s *Session) switchToSurvivor(ctx context.Context, want int) error {
	handles, err := s.driver.WindowHandles(ctx)
	if err != nil {
		return fmt.Errorf("listing windows: %w", err)
	}
	if len(handles) != want {
		return nil
	}
	return s.switchWindow(ctx, handles[0])
}

func (s *Session) scanWindows(ctx context.Context, re *regexp.Regexp) (windowScan, error) {
	handles, err := s.driver.WindowHandles(ctx)
	if errors.Is(err, ErrNoSuchWindow) {
		return windowScan{transient: err}, nil
	}
	if err != nil {
		return windowScan{}, fmt.Errorf("listing windows: %w", err)
	}
	return s.scanHandles(ctx, handles, re)
}

func (s *Session) scanHandles(ctx context.Context, handles []string, re *regexp.Regexp) (windowScan, error) {
	var scan windowScan
	for _, h := range handles {
		matched, err := s.windowMatches(ctx, h, re)
		if errors.Is(err, ErrNoSuchWindow) {
			s.logger.Debugf("Session:scanHandles", "window %s vanished: %v", h, err)
			scan.transient = err
			continue
		}
		if err != nil {
			return scan, err
		}
		if matched {
			scan.handle = h
			scan.found = true
			return scan, nil
		}
	}
	return scan, nil
}

// windowMatches switches into the window h and matches its title, then
// its URL, against re.
func (s *Session) windowMatches(ctx context.Context, h string, re *regexp.Regexp) (bool, error) {
	if err := s.switchWindow(ctx, h); err != nil {
		return false, err
	}
	title, err := s.driver.Title(ctx)
	if err != nil {
		return false, fmt.Errorf("reading title of window %s: %w", h, err)
	}
	if re.MatchString(title) {
		return true, nil
	}
	u, err := s.driver.CurrentURL(ctx)
	if err != nil {
		return false, fmt.Errorf("reading URL of window %s: %w", h, err)
	}
	return re.MatchString(u), nil
}

func (s *Session) switchWindow(ctx context.Context, h string) error {
	if err := s.driver.SwitchToWindow(ctx, h); err != nil {
		return fmt.Errorf("switching to window %s: %w", h, err)
	}
	s.inFrame = false
	s.metrics.windowSwitch()
	s.logger.Debugf("Session:switchWindow", "handle:%s", h)
	return nil
}
