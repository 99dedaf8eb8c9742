package config

import (
	"gopkg.in/guregu/null.v3"
)

// Layer holds the values a single configuration source declares. Fields
// that the source doesn't set are invalid (null) and never override a
// lower precedence layer.
type Layer struct {
	URL              null.String `json:"url" yaml:"url"`
	BaseURL          null.String `json:"baseUrl" yaml:"baseUrl"`
	Path             null.String `json:"path" yaml:"path"`
	Browser          null.String `json:"browser" yaml:"browser"`
	Hub              null.String `json:"hub" yaml:"hub"`
	Timeout          null.Int    `json:"timeout" yaml:"timeout"`
	Retries          null.Int    `json:"retries" yaml:"retries"`
	ScreenshotOnFail null.Bool   `json:"screenshotOnFail" yaml:"screenshotOnFail"`

	CustomCapabilities map[string]string `json:"customCapabilities" yaml:"customCapabilities"`
}

// Apply returns a copy of l with every valid field of o applied on top.
// An empty string counts as unset, the same as in Set. Custom capabilities
// are merged by key, o winning on conflicts. Neither l nor o is modified.
func (l Layer) Apply(o Layer) Layer {
	applyString(&l.URL, o.URL)
	applyString(&l.BaseURL, o.BaseURL)
	applyString(&l.Path, o.Path)
	applyString(&l.Browser, o.Browser)
	applyString(&l.Hub, o.Hub)
	if o.Timeout.Valid {
		l.Timeout = o.Timeout
	}
	if o.Retries.Valid {
		l.Retries = o.Retries
	}
	if o.ScreenshotOnFail.Valid {
		l.ScreenshotOnFail = o.ScreenshotOnFail
	}
	if len(o.CustomCapabilities) > 0 || len(l.CustomCapabilities) > 0 {
		merged := make(map[string]string, len(l.CustomCapabilities)+len(o.CustomCapabilities))
		for k, v := range l.CustomCapabilities {
			merged[k] = v
		}
		for k, v := range o.CustomCapabilities {
			merged[k] = v
		}
		l.CustomCapabilities = merged
	}
	return l
}

// Set coerces value and stores it in the field named by key. It reports
// whether key is known; unknown keys are left to the caller. An empty
// value leaves the field unset.
func (l *Layer) Set(key, value string) (bool, error) {
	if name, ok := capabilityKey(key); ok {
		l.setCapability(name, value)
		return true, nil
	}
	set, ok := layerKeys[key]
	if !ok {
		return false, nil
	}
	if value == "" {
		return true, nil
	}
	return true, set(l, value)
}

func (l *Layer) setCapability(name, value string) {
	if l.CustomCapabilities == nil {
		l.CustomCapabilities = make(map[string]string)
	}
	l.CustomCapabilities[name] = value
}

// ParseLayer builds a layer from raw key/value pairs. Any value that cannot
// be coerced yields an *Error attributed to source. Unknown keys are
// ignored.
func ParseLayer(source string, kv map[string]string) (Layer, error) {
	var l Layer
	for _, k := range sortedKeys(kv) {
		if _, err := l.Set(k, kv[k]); err != nil {
			return Layer{}, &Error{Source: source, Key: k, Value: kv[k], Err: err}
		}
	}
	return l, nil
}

func applyString(dst *null.String, src null.String) {
	if src.Valid && src.String != "" {
		*dst = src
	}
}
