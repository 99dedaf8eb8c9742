package common

import (
	"context"
	"errors"
	"fmt"
	"strconv"
)

// ErrNoSuchWindow is returned by a driver when a window handle vanished
// between enumeration and use.
var ErrNoSuchWindow = errors.New("no such window")

// Strategy is the way a Locator selects elements.
type Strategy string

// Supported locator strategies.
const (
	StrategyCSS   Strategy = "css"
	StrategyID    Strategy = "id"
	StrategyName  Strategy = "name"
	StrategyXPath Strategy = "xpath"
)

// Locator identifies zero or more elements of the current document.
type Locator struct {
	Strategy Strategy
	Value    string
}

// ByCSS returns a locator matching a CSS selector.
func ByCSS(selector string) Locator { return Locator{StrategyCSS, selector} }

// ByID returns a locator matching the element id.
func ByID(id string) Locator { return Locator{StrategyID, id} }

// ByName returns a locator matching the name attribute.
func ByName(name string) Locator { return Locator{StrategyName, name} }

// ByXPath returns a locator matching an XPath expression.
func ByXPath(expr string) Locator { return Locator{StrategyXPath, expr} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Strategy, l.Value)
}

// CSS returns the locator as an equivalent CSS selector. XPath locators
// have none.
func (l Locator) CSS() (string, bool) {
	switch l.Strategy {
	case StrategyCSS:
		return l.Value, true
	case StrategyID:
		return fmt.Sprintf("[id=%s]", strconv.Quote(l.Value)), true
	case StrategyName:
		return fmt.Sprintf("[name=%s]", strconv.Quote(l.Value)), true
	default:
		return "", false
	}
}

type frameKind int

const (
	frameByName frameKind = iota
	frameByIndex
	frameByElement
)

// FrameRef identifies a frame of the current document.
type FrameRef struct {
	kind    frameKind
	name    string
	index   int
	element Element
}

// FrameByName refers to the frame whose id or name attribute is name.
func FrameByName(name string) FrameRef { return FrameRef{kind: frameByName, name: name} }

// FrameByIndex refers to the index-th frame of the document.
func FrameByIndex(index int) FrameRef { return FrameRef{kind: frameByIndex, index: index} }

// FrameByElement refers to the frame rendered by a frame or iframe element.
func FrameByElement(el Element) FrameRef { return FrameRef{kind: frameByElement, element: el} }

// Name returns the id or name of the frame, if it was referred by name.
func (f FrameRef) Name() (string, bool) { return f.name, f.kind == frameByName }

// Index returns the index of the frame, if it was referred by index.
func (f FrameRef) Index() (int, bool) { return f.index, f.kind == frameByIndex }

// Element returns the frame element, if it was referred by element.
func (f FrameRef) Element() (Element, bool) { return f.element, f.kind == frameByElement }

func (f FrameRef) String() string {
	switch f.kind {
	case frameByIndex:
		return "index=" + strconv.Itoa(f.index)
	case frameByElement:
		return "element"
	default:
		return "name=" + f.name
	}
}

// Element is a handle to a DOM element owned by a Driver.
type Element interface {
	ScrollIntoView(ctx context.Context) error
	Click(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error
	Clear(ctx context.Context) error
	Text(ctx context.Context) (string, error)
	TagName(ctx context.Context) (string, error)
	// Attribute returns the value of the named attribute and whether the
	// element has it.
	Attribute(ctx context.Context, name string) (string, bool, error)
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)
	IsSelected(ctx context.Context) (bool, error)
}

// Driver is a live browser session. All window operations act on the
// current window and all element operations on the current frame.
type Driver interface {
	FindElements(ctx context.Context, loc Locator) ([]Element, error)
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)

	// WindowHandles lists the open windows in a stable order.
	WindowHandles(ctx context.Context) ([]string, error)
	WindowHandle(ctx context.Context) (string, error)
	SwitchToWindow(ctx context.Context, handle string) error
	// CloseWindow closes the current window. The driver has no current
	// window until the next SwitchToWindow.
	CloseWindow(ctx context.Context) error

	SwitchToFrame(ctx context.Context, frame FrameRef) error
	SwitchToDefaultContent(ctx context.Context) error

	Navigate(ctx context.Context, url string) error
	Back(ctx context.Context) error
	ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error)
	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)

	// Quit ends the session and releases the browser.
	Quit(ctx context.Context) error
}
