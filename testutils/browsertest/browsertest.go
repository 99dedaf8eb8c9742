/*
 *
 * conductor - synchronization engine for browser tests
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package browsertest provides a scripted in-memory browser for testing
// the waits without launching a real one.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/liuxd6825/conductor/common"
)

// Window is an open window of a Driver.
type Window struct {
	Handle string
	Title  string
	URL    string
}

// Driver is an in-memory common.Driver. Element queries are answered by
// FindFunc; windows are kept in opening order.
type Driver struct {
	mu sync.Mutex

	windows []*Window
	current string

	// HandlesErr, when set, fails every WindowHandles call.
	HandlesErr error

	// FindFunc answers the n-th call (starting at 1) to FindElements.
	FindFunc  func(n int, loc common.Locator) ([]common.Element, error)
	findCalls int

	// Vanishing lists handles that fail with common.ErrNoSuchWindow on
	// their next switches, the value being how many times.
	Vanishing map[string]int
	switches  []string

	FrameErr            error
	frames              []common.FrameRef
	defaultContentCalls int

	navigated []string
	backCalls int

	PageHTML      string
	ScreenshotPNG []byte
	ScreenshotErr error

	QuitErr   error
	quitCalls int
}

var _ common.Driver = &Driver{}

// New returns a driver with the given windows open, the first one being
// current.
func New(windows ...Window) *Driver {
	d := &Driver{Vanishing: make(map[string]int)}
	for i := range windows {
		w := windows[i]
		d.windows = append(d.windows, &w)
	}
	if len(d.windows) > 0 {
		d.current = d.windows[0].Handle
	}
	return d
}

// OpenWindow adds a window, as if a page opened a popup.
func (d *Driver) OpenWindow(w Window) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows = append(d.windows, &w)
}

func (d *Driver) window(handle string) *Window {
	for _, w := range d.windows {
		if w.Handle == handle {
			return w
		}
	}
	return nil
}

func (d *Driver) currentWindow() (*Window, error) {
	w := d.window(d.current)
	if w == nil {
		return nil, common.ErrNoSuchWindow
	}
	return w, nil
}

func (d *Driver) FindElements(_ context.Context, loc common.Locator) ([]common.Element, error) {
	d.mu.Lock()
	d.findCalls++
	n, find := d.findCalls, d.FindFunc
	d.mu.Unlock()

	if find == nil {
		return nil, nil
	}
	return find(n, loc)
}

func (d *Driver) CurrentURL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.currentWindow()
	if err != nil {
		return "", err
	}
	return w.URL, nil
}

func (d *Driver) Title(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.currentWindow()
	if err != nil {
		return "", err
	}
	return w.Title, nil
}

func (d *Driver) WindowHandles(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.HandlesErr != nil {
		return nil, d.HandlesErr
	}
	handles := make([]string, 0, len(d.windows))
	for _, w := range d.windows {
		handles = append(handles, w.Handle)
	}
	return handles, nil
}

func (d *Driver) WindowHandle(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.currentWindow(); err != nil {
		return "", err
	}
	return d.current, nil
}

func (d *Driver) SwitchToWindow(_ context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.switches = append(d.switches, handle)
	if n := d.Vanishing[handle]; n > 0 {
		d.Vanishing[handle] = n - 1
		return fmt.Errorf("window %s: %w", handle, common.ErrNoSuchWindow)
	}
	if d.window(handle) == nil {
		return fmt.Errorf("window %s: %w", handle, common.ErrNoSuchWindow)
	}
	d.current = handle
	return nil
}

func (d *Driver) CloseWindow(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, w := range d.windows {
		if w.Handle == d.current {
			d.windows = append(d.windows[:i], d.windows[i+1:]...)
			d.current = ""
			return nil
		}
	}
	return common.ErrNoSuchWindow
}

func (d *Driver) SwitchToFrame(_ context.Context, f common.FrameRef) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, f)
	return d.FrameErr
}

func (d *Driver) SwitchToDefaultContent(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaultContentCalls++
	return nil
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, err := d.currentWindow()
	if err != nil {
		return err
	}
	w.URL = url
	d.navigated = append(d.navigated, url)
	return nil
}

func (d *Driver) Back(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.backCalls++
	return nil
}

func (d *Driver) ExecuteScript(context.Context, string, ...interface{}) (interface{}, error) {
	return nil, errors.New("scripts are not supported")
}

func (d *Driver) Screenshot(context.Context) ([]byte, error) {
	return d.ScreenshotPNG, d.ScreenshotErr
}

func (d *Driver) PageSource(context.Context) (string, error) {
	return d.PageHTML, nil
}

func (d *Driver) Quit(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quitCalls++
	return d.QuitErr
}

// FindCalls returns how many times FindElements was called.
func (d *Driver) FindCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findCalls
}

// Current returns the handle of the current window, empty when there is
// none.
func (d *Driver) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Switches returns every handle SwitchToWindow was called with.
func (d *Driver) Switches() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.switches...)
}

// Frames returns every frame SwitchToFrame was called with.
func (d *Driver) Frames() []common.FrameRef {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]common.FrameRef(nil), d.frames...)
}

// DefaultContentCalls returns how many times SwitchToDefaultContent was
// called.
func (d *Driver) DefaultContentCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.defaultContentCalls
}

// Navigated returns every URL loaded with Navigate.
func (d *Driver) Navigated() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigated...)
}

// QuitCalls returns how many times Quit was called.
func (d *Driver) QuitCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quitCalls
}
