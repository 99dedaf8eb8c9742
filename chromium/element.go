package chromium

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/liuxd6825/conductor/common"
)

const (
	jsInnerText = `function() { return (this.innerText !== undefined ? this.innerText : this.textContent) || ""; }`
	jsDisplayed = `function() {
	const s = window.getComputedStyle(this);
	return s.visibility !== "hidden" && s.display !== "none" && this.getClientRects().length > 0;
}`
	jsEnabled  = `function() { return !this.disabled; }`
	jsSelected = `function() { return !!(this.checked || this.selected); }`
	jsClear    = `function() {
	if ("value" in this) {
		this.value = "";
		this.dispatchEvent(new Event("input", {bubbles: true}));
		this.dispatchEvent(new Event("change", {bubbles: true}));
	} else if (this.isContentEditable) {
		this.textContent = "";
	}
}`
	jsAttribute = `function() { const n = %s; return this.hasAttribute(n) ? this.getAttribute(n) : null; }`
)

// element is a DOM node of a tab.
type element struct {
	d    *Driver
	t    *tab
	node *cdp.Node
}

var _ common.Element = &element{}

func (e *element) do(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.d.run(ctx, e.t, chromedp.ActionFunc(fn))
}

// call invokes the JS function fn with the element bound to this and
// decodes its result into out.
func (e *element) call(ctx context.Context, fn string, out interface{}) error {
	return e.do(ctx, func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolving node: %w", err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if out == nil || res == nil || len(res.Value) == 0 {
			return nil
		}
		return json.Unmarshal(res.Value, out)
	})
}

func (e *element) ScrollIntoView(ctx context.Context) error {
	return e.do(ctx, func(ctx context.Context) error {
		return dom.ScrollIntoViewIfNeeded().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
	})
}

func (e *element) Click(ctx context.Context) error {
	return e.d.run(ctx, e.t, chromedp.MouseClickNode(e.node))
}

func (e *element) SendKeys(ctx context.Context, text string) error {
	return e.d.run(ctx, e.t, chromedp.KeyEventNode(e.node, text))
}

func (e *element) Clear(ctx context.Context) error {
	return e.call(ctx, jsClear, nil)
}

func (e *element) Text(ctx context.Context) (string, error) {
	var s string
	if err := e.call(ctx, jsInnerText, &s); err != nil {
		return "", err
	}
	return s, nil
}

func (e *element) TagName(context.Context) (string, error) {
	return strings.ToLower(e.node.NodeName), nil
}

func (e *element) Attribute(ctx context.Context, name string) (string, bool, error) {
	quoted, err := json.Marshal(name)
	if err != nil {
		return "", false, err
	}
	var v *string
	if err := e.call(ctx, fmt.Sprintf(jsAttribute, quoted), &v); err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) IsDisplayed(ctx context.Context) (bool, error) {
	return e.bool(ctx, jsDisplayed)
}

func (e *element) IsEnabled(ctx context.Context) (bool, error) {
	return e.bool(ctx, jsEnabled)
}

func (e *element) IsSelected(ctx context.Context) (bool, error) {
	return e.bool(ctx, jsSelected)
}

func (e *element) bool(ctx context.Context, fn string) (bool, error) {
	var b bool
	err := e.call(ctx, fn, &b)
	return b, err
}
