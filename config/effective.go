package config

import (
	"encoding/json"
	"time"
)

// Built-in fallbacks used when no layer sets a field.
const (
	DefaultTimeout          = 5 * time.Second
	DefaultRetries          = 5
	DefaultScreenshotOnFail = true
)

// EffectiveConfig is the fully resolved configuration of one test
// session. It is immutable once built by Resolve.
type EffectiveConfig struct {
	url              string
	baseURL          string
	path             string
	browser          Browser
	hub              string
	timeout          time.Duration
	retries          int
	screenshotOnFail bool
	capabilities     map[string]string
	currentSchemes   []string
}

// URL is the address tests navigate to first. When a base URL is set it
// is the base URL joined with the path.
func (c EffectiveConfig) URL() string { return c.url }

// BaseURL returns the configured base URL, if any.
func (c EffectiveConfig) BaseURL() string { return c.baseURL }

// Path returns the path appended to the base URL.
func (c EffectiveConfig) Path() string { return c.path }

// Browser returns the kind of browser to drive.
func (c EffectiveConfig) Browser() Browser { return c.browser }

// Hub returns the remote browser endpoint. Empty means a local browser.
func (c EffectiveConfig) Hub() string { return c.hub }

// Timeout bounds condition waits.
func (c EffectiveConfig) Timeout() time.Duration { return c.timeout }

// Retries is the attempt budget of element and window waits.
func (c EffectiveConfig) Retries() int { return c.retries }

// ScreenshotOnFail reports whether a screenshot is captured when a test
// fails.
func (c EffectiveConfig) ScreenshotOnFail() bool { return c.screenshotOnFail }

// CustomCapabilities returns a copy of the merged driver capabilities.
func (c EffectiveConfig) CustomCapabilities() map[string]string {
	caps := make(map[string]string, len(c.capabilities))
	for k, v := range c.capabilities {
		caps[k] = v
	}
	return caps
}

// CurrentSchemes lists the configuration schemes that contributed to the
// defaults layer. It is informational only.
func (c EffectiveConfig) CurrentSchemes() []string {
	return append([]string(nil), c.currentSchemes...)
}

// WithCurrentSchemes returns a copy of c carrying the given scheme names.
func (c EffectiveConfig) WithCurrentSchemes(schemes []string) EffectiveConfig {
	c.currentSchemes = append([]string(nil), schemes...)
	return c
}

type effectiveView struct {
	URL                string            `json:"url" yaml:"url"`
	BaseURL            string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`
	Path               string            `json:"path,omitempty" yaml:"path,omitempty"`
	Browser            string            `json:"browser" yaml:"browser"`
	Hub                string            `json:"hub,omitempty" yaml:"hub,omitempty"`
	Timeout            string            `json:"timeout" yaml:"timeout"`
	Retries            int               `json:"retries" yaml:"retries"`
	ScreenshotOnFail   bool              `json:"screenshotOnFail" yaml:"screenshotOnFail"`
	CustomCapabilities map[string]string `json:"customCapabilities,omitempty" yaml:"customCapabilities,omitempty"`
	CurrentSchemes     []string          `json:"currentSchemes,omitempty" yaml:"currentSchemes,omitempty"`
}

func (c EffectiveConfig) view() effectiveView {
	return effectiveView{
		URL:                c.url,
		BaseURL:            c.baseURL,
		Path:               c.path,
		Browser:            c.browser.String(),
		Hub:                c.hub,
		Timeout:            c.timeout.String(),
		Retries:            c.retries,
		ScreenshotOnFail:   c.screenshotOnFail,
		CustomCapabilities: c.CustomCapabilities(),
		CurrentSchemes:     c.CurrentSchemes(),
	}
}

// MarshalJSON implements json.Marshaler.
func (c EffectiveConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.view())
}

// MarshalYAML implements yaml.Marshaler.
func (c EffectiveConfig) MarshalYAML() (interface{}, error) {
	return c.view(), nil
}
