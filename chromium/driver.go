package chromium

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/liuxd6825/conductor/common"
	"github.com/liuxd6825/conductor/log"
)

// tab is an attached page target. frame is the frame element the tab is
// switched into, nil at top level.
type tab struct {
	id     target.ID
	ctx    context.Context
	cancel context.CancelFunc
	frame  *cdp.Node
}

// Driver is a common.Driver controlling a Chromium browser through the
// DevTools protocol.
type Driver struct {
	logger *log.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu      sync.Mutex
	tabs    map[target.ID]*tab
	order   []target.ID
	current *tab
}

var _ common.Driver = &Driver{}

// newDriver starts a browser session on the allocator of allocCtx. On
// failure both contexts are canceled.
func newDriver(allocCtx context.Context, allocCancel context.CancelFunc, logger *log.Logger) (*Driver, error) {
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debugf("chromedp", format, args...)
		}),
		chromedp.WithErrorf(func(format string, args ...interface{}) {
			logger.Errorf("chromedp", format, args...)
		}),
	)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, err
	}

	c := chromedp.FromContext(browserCtx)
	first := &tab{id: c.Target.TargetID, ctx: browserCtx, cancel: browserCancel}
	d := &Driver{
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabs:          map[target.ID]*tab{first.id: first},
		order:         []target.ID{first.id},
		current:       first,
	}
	logger.Debugf("Driver:newDriver", "tid:%s", first.id)
	return d, nil
}

// run executes actions on t, aborting when ctx is done.
func (d *Driver) run(ctx context.Context, t *tab, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (d *Driver) currentTab() (*tab, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil, common.ErrNoSuchWindow
	}
	return d.current, nil
}

// scope returns the query options limiting a query to the current frame.
func (t *tab) scope(opts ...chromedp.QueryOption) []chromedp.QueryOption {
	if t.frame != nil {
		opts = append(opts, chromedp.FromNode(t.frame))
	}
	return opts
}

// query returns the selector and options locating loc in the current frame
// of t. DOM.performSearch ignores FromNode, so XPath is evaluated against
// the frame's document instead.
func (t *tab) query(loc common.Locator) (string, []chromedp.QueryOption) {
	if css, ok := loc.CSS(); ok {
		return css, t.scope(chromedp.ByQueryAll, chromedp.AtLeast(0))
	}
	return loc.Value, t.scope(byXPath(loc.Value), chromedp.AtLeast(0))
}

func (d *Driver) FindElements(ctx context.Context, loc common.Locator) ([]common.Element, error) {
	t, err := d.currentTab()
	if err != nil {
		return nil, err
	}

	sel, opts := t.query(loc)
	var nodes []*cdp.Node
	if err := d.run(ctx, t, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("querying %s: %w", loc, err)
	}
	els := make([]common.Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &element{d: d, t: t, node: n})
	}
	return els, nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	t, err := d.currentTab()
	if err != nil {
		return "", err
	}
	var u string
	if err := d.run(ctx, t, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return u, nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	t, err := d.currentTab()
	if err != nil {
		return "", err
	}
	var title string
	if err := d.run(ctx, t, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("reading title: %w", err)
	}
	return title, nil
}

func (d *Driver) WindowHandles(ctx context.Context) ([]string, error) {
	infos, err := d.pages(ctx)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = syncHandles(d.order, infos)
	handles := make([]string, 0, len(d.order))
	for _, id := range d.order {
		handles = append(handles, string(id))
	}
	return handles, nil
}

func (d *Driver) pages(ctx context.Context) ([]*target.Info, error) {
	infos, err := chromedp.Targets(d.browserCtx)
	if err != nil {
		return nil, fmt.Errorf("listing targets: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return infos, nil
}

// syncHandles keeps the known page targets in the order they were first
// seen, dropping closed ones and appending new ones.
func syncHandles(known []target.ID, infos []*target.Info) []target.ID {
	live := make(map[target.ID]bool, len(infos))
	for _, info := range infos {
		if info.Type == "page" {
			live[info.TargetID] = true
		}
	}
	order := make([]target.ID, 0, len(live))
	seen := make(map[target.ID]bool, len(live))
	for _, id := range known {
		if live[id] {
			order = append(order, id)
			seen[id] = true
		}
	}
	for _, info := range infos {
		if info.Type == "page" && !seen[info.TargetID] {
			order = append(order, info.TargetID)
			seen[info.TargetID] = true
		}
	}
	return order
}

func (d *Driver) WindowHandle(context.Context) (string, error) {
	t, err := d.currentTab()
	if err != nil {
		return "", err
	}
	return string(t.id), nil
}

func (d *Driver) SwitchToWindow(ctx context.Context, handle string) error {
	id := target.ID(handle)
	infos, err := d.pages(ctx)
	if err != nil {
		return err
	}
	if !containsPage(infos, id) {
		d.forget(id)
		return fmt.Errorf("window %s: %w", handle, common.ErrNoSuchWindow)
	}

	t := d.attach(id)
	if err := d.run(ctx, t, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.ActivateTarget(id).Do(ctx)
	})); err != nil {
		d.forget(id)
		return fmt.Errorf("activating window %s: %w", handle, errors.Join(common.ErrNoSuchWindow, err))
	}

	d.mu.Lock()
	t.frame = nil
	d.current = t
	d.mu.Unlock()
	return nil
}

func containsPage(infos []*target.Info, id target.ID) bool {
	for _, info := range infos {
		if info.TargetID == id && info.Type == "page" {
			return true
		}
	}
	return false
}

// attach returns the tab of the page target id, attaching to it on first
// use.
func (d *Driver) attach(id target.ID) *tab {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tabs[id]; ok {
		return t
	}
	ctx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(id))
	t := &tab{id: id, ctx: ctx, cancel: cancel}
	d.tabs[id] = t
	return t
}

func (d *Driver) forget(id target.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tabs[id]
	if !ok {
		return
	}
	delete(d.tabs, id)
	if t.ctx != d.browserCtx {
		t.cancel()
	}
	if d.current == t {
		d.current = nil
	}
}

func (d *Driver) CloseWindow(ctx context.Context) error {
	t, err := d.currentTab()
	if err != nil {
		return err
	}
	if err := d.run(ctx, t, page.Close()); err != nil {
		return fmt.Errorf("closing window %s: %w", t.id, err)
	}
	d.forget(t.id)
	return nil
}

func (d *Driver) SwitchToFrame(ctx context.Context, f common.FrameRef) error {
	t, err := d.currentTab()
	if err != nil {
		return err
	}

	var node *cdp.Node
	switch {
	case isElementRef(f):
		el, _ := f.Element()
		e, ok := el.(*element)
		if !ok {
			return errors.New("frame element does not belong to this browser")
		}
		node = e.node
	default:
		var nodes []*cdp.Node
		sel := "iframe, frame"
		if name, ok := f.Name(); ok {
			sel = fmt.Sprintf("iframe[name=%[1]q], iframe[id=%[1]q], frame[name=%[1]q], frame[id=%[1]q]", name)
		}
		if err := d.run(ctx, t, chromedp.Nodes(sel, &nodes, t.scope(chromedp.ByQueryAll, chromedp.AtLeast(0))...)); err != nil {
			return fmt.Errorf("querying frames: %w", err)
		}
		i, _ := f.Index()
		if i < 0 || i >= len(nodes) {
			return fmt.Errorf("no frame %s", f)
		}
		node = nodes[i]
	}

	if name := strings.ToLower(node.NodeName); name != "iframe" && name != "frame" {
		return fmt.Errorf("element %s is not a frame", name)
	}
	d.mu.Lock()
	t.frame = node
	d.mu.Unlock()
	return nil
}

func isElementRef(f common.FrameRef) bool {
	_, ok := f.Element()
	return ok
}

func (d *Driver) SwitchToDefaultContent(context.Context) error {
	t, err := d.currentTab()
	if err != nil {
		return err
	}
	d.mu.Lock()
	t.frame = nil
	d.mu.Unlock()
	return nil
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	t, err := d.currentTab()
	if err != nil {
		return err
	}
	if err := d.run(ctx, t, chromedp.Navigate(url)); err != nil {
		return err
	}
	d.mu.Lock()
	t.frame = nil
	d.mu.Unlock()
	return nil
}

func (d *Driver) Back(ctx context.Context) error {
	t, err := d.currentTab()
	if err != nil {
		return err
	}
	if err := d.run(ctx, t, chromedp.NavigateBack()); err != nil {
		return err
	}
	d.mu.Lock()
	t.frame = nil
	d.mu.Unlock()
	return nil
}

// ExecuteScript runs script as the body of a function called with args
// and returns its JSON decoded result.
func (d *Driver) ExecuteScript(ctx context.Context, script string, args ...interface{}) (interface{}, error) {
	t, err := d.currentTab()
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = []interface{}{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshaling script arguments: %w", err)
	}

	var res interface{}
	expr := fmt.Sprintf("(function(){%s}).apply(null, %s)", script, b)
	if err := d.run(ctx, t, chromedp.Evaluate(expr, &res)); err != nil {
		return nil, fmt.Errorf("executing script: %w", err)
	}
	return res, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	t, err := d.currentTab()
	if err != nil {
		return nil, err
	}
	var buf []byte
	if err := d.run(ctx, t, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

func (d *Driver) PageSource(ctx context.Context) (string, error) {
	t, err := d.currentTab()
	if err != nil {
		return "", err
	}
	var html string
	if err := d.run(ctx, t, chromedp.OuterHTML("html", &html, t.scope(chromedp.ByQuery)...)); err != nil {
		return "", fmt.Errorf("reading page source: %w", err)
	}
	return html, nil
}

// Quit closes the browser, or the pages opened by the session when
// connected to a remote one.
func (d *Driver) Quit(context.Context) error {
	d.mu.Lock()
	tabs := d.tabs
	d.tabs = map[target.ID]*tab{}
	d.current = nil
	d.mu.Unlock()

	for _, t := range tabs {
		if t.ctx != d.browserCtx {
			t.cancel()
		}
	}
	err := chromedp.Cancel(d.browserCtx)
	d.browserCancel()
	d.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}
