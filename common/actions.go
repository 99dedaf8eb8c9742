package common

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/liuxd6825/conductor/config"
)

// NavigateTo loads target. Absolute URLs are loaded as is, paths starting
// with a slash are resolved against the origin of the configured URL, and
// anything else is appended to the current URL.
func (s *Session) NavigateTo(ctx context.Context, target string) error {
	dest, err := s.resolveTarget(ctx, target)
	if err != nil {
		return err
	}
	s.logger.Debugf("Session:NavigateTo", "url:%q", dest)
	if err := s.driver.Navigate(ctx, dest); err != nil {
		return fmt.Errorf("navigating to %q: %w", dest, err)
	}
	s.inFrame = false
	return nil
}

func (s *Session) resolveTarget(ctx context.Context, target string) (string, error) {
	switch {
	case strings.Contains(target, "://"):
		return target, nil
	case strings.HasPrefix(target, "/"):
		base, err := url.Parse(s.config.URL())
		if err != nil || base.Host == "" {
			return "", fmt.Errorf("resolving %q: no absolute URL is configured", target)
		}
		return base.Scheme + "://" + base.Host + target, nil
	default:
		current, err := s.driver.CurrentURL(ctx)
		if err != nil {
			return "", fmt.Errorf("resolving %q: reading current URL: %w", target, err)
		}
		return config.JoinURL(current, target), nil
	}
}

// GoBack goes back one page in the history of the current window.
func (s *Session) GoBack(ctx context.Context) error {
	if err := s.driver.Back(ctx); err != nil {
		return fmt.Errorf("going back: %w", err)
	}
	s.inFrame = false
	return nil
}

// IsPresent reports whether loc matches anything right now, without
// waiting.
func (s *Session) IsPresent(ctx context.Context, loc Locator) (bool, error) {
	els, err := s.driver.FindElements(ctx, loc)
	if err != nil {
		return false, fmt.Errorf("finding %s: %w", loc, err)
	}
	return len(els) > 0, nil
}

// Click waits for loc to be visible and enabled and clicks it.
func (s *Session) Click(ctx context.Context, loc Locator) error {
	el, err := s.interactable(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("clicking %s: %w", loc, err)
	}
	return nil
}

// SetText replaces the content of the input matched by loc with text.
func (s *Session) SetText(ctx context.Context, loc Locator, text string) error {
	el, err := s.interactable(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Clear(ctx); err != nil {
		return fmt.Errorf("clearing %s: %w", loc, err)
	}
	if err := el.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("typing in %s: %w", loc, err)
	}
	return nil
}

// Check selects the checkbox or radio button matched by loc unless it is
// already selected.
func (s *Session) Check(ctx context.Context, loc Locator) error {
	return s.setSelected(ctx, loc, true)
}

// Uncheck clears the checkbox matched by loc unless it is already clear.
func (s *Session) Uncheck(ctx context.Context, loc Locator) error {
	return s.setSelected(ctx, loc, false)
}

func (s *Session) setSelected(ctx context.Context, loc Locator, want bool) error {
	el, err := s.interactable(ctx, loc)
	if err != nil {
		return err
	}
	selected, err := el.IsSelected(ctx)
	if err != nil {
		return fmt.Errorf("reading state of %s: %w", loc, err)
	}
	if selected == want {
		return nil
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("clicking %s: %w", loc, err)
	}
	return nil
}

// GetText returns the text of the element matched by loc. For form
// fields it is their current value.
func (s *Session) GetText(ctx context.Context, loc Locator) (string, error) {
	el, err := s.WaitForElement(ctx, loc)
	if err != nil {
		return "", err
	}
	return elementText(ctx, el)
}

func elementText(ctx context.Context, el Element) (string, error) {
	tag, err := el.TagName(ctx)
	if err != nil {
		return "", fmt.Errorf("reading tag name: %w", err)
	}
	switch strings.ToLower(tag) {
	case "input", "select", "textarea":
		v, _, err := el.Attribute(ctx, "value")
		if err != nil {
			return "", fmt.Errorf("reading value: %w", err)
		}
		return v, nil
	default:
		t, err := el.Text(ctx)
		if err != nil {
			return "", fmt.Errorf("reading text: %w", err)
		}
		return strings.TrimSpace(t), nil
	}
}

// interactable waits for loc and then for the element to be visible and
// enabled.
func (s *Session) interactable(ctx context.Context, loc Locator) (Element, error) {
	el, err := s.WaitForElement(ctx, loc)
	if err != nil {
		return nil, err
	}
	if err := s.WaitForCondition(ctx, ElementDisplayed(el), WithDescription(loc.String()+" to be visible")); err != nil {
		return nil, err
	}
	if err := s.WaitForCondition(ctx, ElementEnabled(el), WithDescription(loc.String()+" to be clickable")); err != nil {
		return nil, err
	}
	return el, nil
}

// ValidatePresent fails unless loc matches within the retries budget.
func (s *Session) ValidatePresent(ctx context.Context, loc Locator) error {
	_, err := s.WaitForElement(ctx, loc)
	return err
}

// ValidateNotPresent fails if loc matches anything right now.
func (s *Session) ValidateNotPresent(ctx context.Context, loc Locator) error {
	present, err := s.IsPresent(ctx, loc)
	if err != nil {
		return err
	}
	if present {
		return &AssertionError{Message: loc.String() + " should not be present", Expected: "absent", Actual: "present"}
	}
	return nil
}

// ValidateText fails unless the text of loc equals expected.
func (s *Session) ValidateText(ctx context.Context, loc Locator, expected string) error {
	actual, err := s.GetText(ctx, loc)
	if err != nil {
		return err
	}
	if actual != expected {
		return &AssertionError{Message: "text of " + loc.String(), Expected: expected, Actual: actual}
	}
	return nil
}

// ValidateAttribute fails unless attribute name of loc equals expected.
func (s *Session) ValidateAttribute(ctx context.Context, loc Locator, name, expected string) error {
	el, err := s.WaitForElement(ctx, loc)
	if err != nil {
		return err
	}
	actual, ok, err := el.Attribute(ctx, name)
	if err != nil {
		return fmt.Errorf("reading attribute %s of %s: %w", name, loc, err)
	}
	if !ok || actual != expected {
		return &AssertionError{Message: "attribute " + name + " of " + loc.String(), Expected: expected, Actual: actual}
	}
	return nil
}

// ValidateURL waits, up to the configured timeout, for the current URL to
// match pattern.
func (s *Session) ValidateURL(ctx context.Context, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid URL pattern %q: %w", pattern, err)
	}
	return s.WaitForCondition(ctx, URLMatches(re), WithDescription(fmt.Sprintf("URL to match %q", pattern)))
}

// ValidateTextPresent fails unless text appears in the visible text of
// the current document.
func (s *Session) ValidateTextPresent(ctx context.Context, text string) error {
	body, err := s.documentText(ctx)
	if err != nil {
		return err
	}
	if !strings.Contains(body, text) {
		return &AssertionError{Message: "text should be present on the page", Expected: text, Actual: ""}
	}
	return nil
}

// ValidateTextNotPresent fails if text appears in the visible text of the
// current document.
func (s *Session) ValidateTextNotPresent(ctx context.Context, text string) error {
	body, err := s.documentText(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(body, text) {
		return &AssertionError{Message: "text should not be present on the page", Expected: "", Actual: text}
	}
	return nil
}

func (s *Session) documentText(ctx context.Context) (string, error) {
	src, err := s.driver.PageSource(ctx)
	if err != nil {
		return "", fmt.Errorf("reading page source: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parsing page source: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	return doc.Find("body").Text(), nil
}
