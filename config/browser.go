package config

import (
	"fmt"
	"strings"
)

// Browser is the kind of browser a session drives.
type Browser string

// Browser kinds understood by the resolver. BrowserNone means that no
// browser was configured.
const (
	BrowserNone             Browser = "none"
	BrowserChrome           Browser = "chrome"
	BrowserFirefox          Browser = "firefox"
	BrowserInternetExplorer Browser = "internet_explorer"
	BrowserEdge             Browser = "edge"
	BrowserSafari           Browser = "safari"
	BrowserHTMLUnit         Browser = "htmlunit"
	BrowserPhantomJS        Browser = "phantomjs"
)

var browsers = map[Browser]struct{}{
	BrowserNone:             {},
	BrowserChrome:           {},
	BrowserFirefox:          {},
	BrowserInternetExplorer: {},
	BrowserEdge:             {},
	BrowserSafari:           {},
	BrowserHTMLUnit:         {},
	BrowserPhantomJS:        {},
}

// ParseBrowser parses a browser name case-insensitively. Spaces and
// dashes are treated as underscores, so "Internet Explorer" and
// "INTERNET_EXPLORER" are the same kind. The empty string is BrowserNone.
func ParseBrowser(s string) (Browser, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BrowserNone, nil
	}
	norm := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(s))
	b := Browser(norm)
	if _, ok := browsers[b]; !ok {
		return BrowserNone, fmt.Errorf("unknown browser %q", s)
	}
	return b, nil
}

func (b Browser) String() string {
	if b == "" {
		return string(BrowserNone)
	}
	return string(b)
}
