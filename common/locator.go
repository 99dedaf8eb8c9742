package common

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

// attemptCounter is the loop state of one logical wait. Every retry of
// that wait, whatever caused it, draws from the same budget. Each wait
// call starts from a fresh counter.
type attemptCounter struct {
	n      int
	budget int
}

// newAttemptCounter returns a counter allowing budget attempts. A budget
// below one still allows a single attempt.
func newAttemptCounter(budget int) *attemptCounter {
	if budget < 1 {
		budget = 1
	}
	return &attemptCounter{budget: budget}
}

func (c *attemptCounter) next() int {
	c.n++
	return c.n
}

func (c *attemptCounter) exhausted() bool {
	return c.n >= c.budget
}

// WaitForElements polls the current frame for elements matching loc. It
// queries at once and then once per poll interval until something
// matches or the retries budget of the session is spent. It returns an
// empty slice when nothing matched.
func (s *Session) WaitForElements(ctx context.Context, loc Locator) ([]Element, error) {
	res, err := s.waitForElements(ctx, loc)
	return res.elements, err
}

// WaitForElement is like WaitForElements but fails with an
// *ElementNotFoundError when nothing matched. When several elements
// match, the first one is used. The element is scrolled into view before
// it is returned.
func (s *Session) WaitForElement(ctx context.Context, loc Locator) (Element, error) {
	ctx, span := s.startSpan(ctx, "session.waitForElement", attribute.String("locator", loc.String()))
	defer span.End()

	res, err := s.waitForElements(ctx, loc)
	if err != nil {
		return nil, spanRecordError(span, err)
	}
	els := res.elements
	if len(els) == 0 {
		return nil, spanRecordError(span, &ElementNotFoundError{Locator: loc, Attempts: res.attempts, Err: res.lastErr})
	}
	if len(els) > 1 {
		s.logger.Warnf("Session:WaitForElement", "sel:%s matched %d elements, using the first one", loc, len(els))
	}
	el := els[0]
	if err := el.ScrollIntoView(ctx); err != nil {
		s.logger.Debugf("Session:WaitForElement", "sel:%s scrolling into view: %v", loc, err)
	}
	return el, nil
}

type pollResult struct {
	elements []Element
	attempts int
	// lastErr is the last driver fault seen while polling.
	lastErr error
}

// waitForElements polls for loc. The error is only set when ctx is done.
func (s *Session) waitForElements(ctx context.Context, loc Locator) (pollResult, error) {
	const wait = "element"

	start := s.clock.Now()
	counter := newAttemptCounter(s.config.Retries())
	var lastErr error
	for {
		attempt := counter.next()
		s.metrics.attempt(wait)

		els, err := s.driver.FindElements(ctx, loc)
		if cerr := ctx.Err(); cerr != nil {
			s.metrics.finish(wait, outcomeCanceled, s.clock.Now().Sub(start).Seconds())
			return pollResult{attempts: attempt, lastErr: lastErr}, cerr
		}
		if err != nil {
			lastErr = err
			s.logger.Debugf("Session:waitForElements", "sel:%s attempt:%d/%d err:%v", loc, attempt, counter.budget, err)
		}
		if len(els) > 0 {
			s.metrics.finish(wait, outcomeFound, s.clock.Now().Sub(start).Seconds())
			s.logger.Debugf("Session:waitForElements", "sel:%s attempt:%d/%d found:%d", loc, attempt, counter.budget, len(els))
			return pollResult{elements: els, attempts: attempt}, nil
		}
		if counter.exhausted() {
			s.metrics.finish(wait, outcomeExhausted, s.clock.Now().Sub(start).Seconds())
			return pollResult{attempts: attempt, lastErr: lastErr}, nil
		}
		s.logger.Debugf("Session:waitForElements", "sel:%s attempt:%d/%d no match, retrying", loc, attempt, counter.budget)
		if err := s.clock.Sleep(ctx, DefaultPollInterval); err != nil {
			s.metrics.finish(wait, outcomeCanceled, s.clock.Now().Sub(start).Seconds())
			return pollResult{attempts: attempt, lastErr: lastErr}, err
		}
	}
}
