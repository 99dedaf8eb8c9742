package chromium

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chromedp/chromedp"

	"github.com/liuxd6825/conductor/common"
	"github.com/liuxd6825/conductor/config"
	"github.com/liuxd6825/conductor/log"
)

// Capabilities with a dedicated meaning. Any other capability is passed
// to the browser as a command line flag of the same name.
const (
	capBinary            = "binary"
	capHeadless          = "headless"
	capArgs              = "args"
	capIgnoreDefaultArgs = "ignoreDefaultArgs"
	capWindowSize        = "windowSize"
	capProxy             = "proxy"
	capUserDataDir       = "userDataDir"
)

const defaultConnectAttempts = 3

// ErrNoExecutable is returned when no browser binary could be found.
var ErrNoExecutable = errors.New("no browser executable found")

// ErrWebDriverHub is returned for a hub address that points at a Selenium
// grid instead of a DevTools endpoint.
var ErrWebDriverHub = errors.New("hub is a WebDriver endpoint, a DevTools endpoint is required")

// BrowserType starts Chromium based browsers, either locally or on a
// remote hub.
type BrowserType struct {
	logger *log.Logger

	// NewBackOff builds the retry policy for connecting to a hub.
	NewBackOff func() backoff.BackOff
	// LookPath finds the browser binary. Defaults to ExecutablePath.
	LookPath func(config.Browser) string
}

// NewBrowserType returns a BrowserType logging to logger.
func NewBrowserType(logger *log.Logger) *BrowserType {
	return &BrowserType{
		logger: logger,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 30 * time.Second
			return backoff.WithMaxRetries(b, defaultConnectAttempts-1)
		},
		LookPath: ExecutablePath,
	}
}

// NewDriver acquires a browser session for cfg. A configured hub is
// connected to, otherwise a browser is launched. Failures are
// *common.SessionError.
//
// The hub must speak the Chrome DevTools protocol: either a ws:// browser
// URL or an http://host:port serving /json/version, as exposed by a
// browser started with --remote-debugging-port or by a CDP proxy. Selenium
// grid /wd/hub URLs are rejected with ErrWebDriverHub.
func (b *BrowserType) NewDriver(ctx context.Context, cfg config.EffectiveConfig) (*Driver, error) {
	browser := cfg.Browser()
	if browser == config.BrowserNone {
		browser = config.BrowserChrome
	}
	serr := &common.SessionError{Browser: browser.String(), Hub: cfg.Hub()}

	if browser != config.BrowserChrome && browser != config.BrowserEdge {
		serr.Err = fmt.Errorf("unsupported browser %q", browser)
		return nil, serr
	}

	var (
		d   *Driver
		err error
	)
	if hub := cfg.Hub(); hub != "" {
		if isWebDriverHub(hub) {
			serr.Err = ErrWebDriverHub
			return nil, serr
		}
		d, err = b.connect(ctx, hub)
	} else {
		d, err = b.launch(ctx, browser, cfg.CustomCapabilities())
	}
	if err != nil {
		serr.Err = err
		return nil, serr
	}
	return d, nil
}

func (b *BrowserType) launch(ctx context.Context, browser config.Browser, caps map[string]string) (*Driver, error) {
	execPath := caps[capBinary]
	if execPath == "" {
		execPath = b.LookPath(browser)
	}
	if execPath == "" {
		return nil, ErrNoExecutable
	}

	flags, err := prepareFlags(caps)
	if err != nil {
		return nil, err
	}
	opts := allocatorOptions(execPath, flags)
	b.logger.Debugf("BrowserType:launch", "execPath:%s flags:%v", execPath, sortedFlagNames(flags))

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)
	return newDriver(allocCtx, allocCancel, b.logger)
}

func isWebDriverHub(hub string) bool {
	u, err := url.Parse(hub)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.TrimSuffix(u.Path, "/"), "/wd/hub")
}

// connect attaches to the DevTools endpoint at hub, retrying on failure.
func (b *BrowserType) connect(ctx context.Context, hub string) (*Driver, error) {
	var (
		d       *Driver
		attempt int
	)
	op := func() error {
		attempt++
		b.logger.Debugf("BrowserType:connect", "hub:%s attempt:%d", hub, attempt)

		allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), hub)
		var err error
		d, err = newDriver(allocCtx, allocCancel, b.logger)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, next time.Duration) {
		b.logger.Warnf("BrowserType:connect", "connecting to %s failed, retrying in %s: %v", hub, next, err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(b.NewBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return d, nil
}

// ExecutablePath returns the first browser binary of the given kind
// found on the system, or an empty string.
func ExecutablePath(browser config.Browser) string {
	var paths []string
	switch browser {
	case config.BrowserEdge:
		paths = []string{
			"microsoft-edge",
			"microsoft-edge-stable",
			"microsoft-edge-beta",
			"/usr/bin/microsoft-edge",

			"msedge",
			"msedge.exe",
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,

			"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
		}
	default:
		paths = []string{
			// Unix-like
			"headless_shell",
			"headless-shell",
			"chromium",
			"chromium-browser",
			"google-chrome",
			"google-chrome-stable",
			"google-chrome-beta",
			"google-chrome-unstable",
			"/usr/bin/google-chrome",

			// Windows
			"chrome",
			"chrome.exe", // in case PATHEXT is misconfigured
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			filepath.Join(os.Getenv("USERPROFILE"), `AppData\Local\Google\Chrome\Application\chrome.exe`),

			// Mac
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	}
	for _, path := range paths {
		if _, err := exec.LookPath(path); err == nil {
			return path
		}
	}

	return ""
}

// prepareFlags builds the browser command line flags from the custom
// capabilities.
func prepareFlags(caps map[string]string) (map[string]any, error) {
	headless := true
	if v, ok := caps[capHeadless]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s capability %q: %w", capHeadless, v, err)
		}
		headless = b
	}

	f := map[string]any{
		"disable-background-networking":       true,
		"disable-background-timer-throttling": true,
		"disable-breakpad":                    true,
		"disable-default-apps":                true,
		"disable-dev-shm-usage":               true,
		"disable-extensions":                  true,
		"disable-hang-monitor":                true,
		"disable-popup-blocking":              true,
		"disable-prompt-on-repost":            true,
		"disable-renderer-backgrounding":      true,
		"force-color-profile":                 "srgb",
		"metrics-recording-only":              true,
		"no-first-run":                        true,
		"no-default-browser-check":            true,
		"enable-automation":                   true,
		"password-store":                      "basic",
		"use-mock-keychain":                   true,

		"headless":    headless,
		"window-size": "800,600",
	}
	if headless {
		f["hide-scrollbars"] = true
		f["mute-audio"] = true
	}

	for name, value := range caps {
		switch name {
		case capBinary, capHeadless, capArgs, capIgnoreDefaultArgs:
		case capWindowSize:
			f["window-size"] = value
		case capProxy:
			f["proxy-server"] = value
		case capUserDataDir:
			f["user-data-dir"] = value
		default:
			f[name] = flagValue(value)
		}
	}

	ignoreDefaultArgsFlags(f, splitList(caps[capIgnoreDefaultArgs]))
	setFlagsFromArgs(f, splitList(caps[capArgs]))

	return f, nil
}

func flagValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// splitList splits a comma separated capability value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ignoreDefaultArgsFlags ignores any flags in the provided slice.
func ignoreDefaultArgsFlags(flags map[string]any, toIgnore []string) {
	for _, name := range toIgnore {
		delete(flags, strings.TrimPrefix(name, "--"))
	}
}

// setFlagsFromArgs fills flags by parsing "name=value" arguments. An
// argument without a value is a switch.
func setFlagsFromArgs(flags map[string]any, args []string) {
	for _, arg := range args {
		pair := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(strings.TrimSpace(pair[0]), "--")
		if len(pair) == 1 {
			flags[name] = true
			continue
		}
		flags[name] = trimQuotes(strings.TrimSpace(pair[1]))
	}
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// allocatorOptions turns flags into exec allocator options. Flags set to
// false are left out.
func allocatorOptions(execPath string, flags map[string]any) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{chromedp.ExecPath(execPath)}
	for _, name := range sortedFlagNames(flags) {
		if v, ok := flags[name].(bool); ok && !v {
			continue
		}
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}
	return opts
}

func sortedFlagNames(flags map[string]any) []string {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
