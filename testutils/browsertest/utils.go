package browsertest

import (
	"context"
	"sync"
	"time"

	"github.com/liuxd6825/conductor/common"
)

// Clock is a common.Clock whose sleeps return at once and move its time
// forward.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration

	// OnSleep, if set, is called after each sleep with its number,
	// starting at 1.
	OnSleep func(n int)
}

var _ common.Clock = &Clock{}

// NewClock returns a clock stopped at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2021, time.June, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	n, hook := len(c.sleeps), c.OnSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return nil
}

// Advance moves the clock forward by d without recording a sleep.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns the durations of every sleep so far.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// Element is an in-memory common.Element.
type Element struct {
	mu sync.Mutex

	Tag   string
	Value string
	Attrs map[string]string

	Displayed bool
	Enabled   bool
	Selected  bool
	// HiddenFor is how many visibility checks fail before Displayed is
	// reported.
	HiddenFor int

	scrolls int
	clicks  int
	typed   string
}

var _ common.Element = &Element{}

// NewElement returns a visible and enabled element.
func NewElement(tag, text string) *Element {
	return &Element{Tag: tag, Value: text, Attrs: map[string]string{}, Displayed: true, Enabled: true}
}

func (e *Element) ScrollIntoView(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scrolls++
	return nil
}

func (e *Element) Click(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clicks++
	if e.Attrs["type"] == "checkbox" || e.Attrs["type"] == "radio" {
		e.Selected = !e.Selected
	}
	return nil
}

func (e *Element) SendKeys(_ context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed += text
	e.setAttr("value", e.typed)
	return nil
}

func (e *Element) Clear(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.typed = ""
	e.setAttr("value", "")
	return nil
}

func (e *Element) setAttr(name, value string) {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[name] = value
}

func (e *Element) Text(context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Value, nil
}

func (e *Element) TagName(context.Context) (string, error) {
	return e.Tag, nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) IsDisplayed(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.HiddenFor > 0 {
		e.HiddenFor--
		return false, nil
	}
	return e.Displayed, nil
}

func (e *Element) IsEnabled(context.Context) (bool, error) {
	return e.Enabled, nil
}

func (e *Element) IsSelected(context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Selected, nil
}

// Scrolls returns how many times the element was scrolled into view.
func (e *Element) Scrolls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scrolls
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Found answers FindElements with els from the n-th call on and with
// nothing before.
func Found(n int, els ...common.Element) func(int, common.Locator) ([]common.Element, error) {
	return func(call int, _ common.Locator) ([]common.Element, error) {
		if call < n {
			return nil, nil
		}
		return els, nil
	}
}
