package config

import (
	"strings"
	"time"

	"github.com/liuxd6825/conductor/log"
)

// Resolver combines configuration layers into an EffectiveConfig.
type Resolver struct {
	Logger *log.Logger
}

// NewResolver returns a resolver that reports ignored defaults to logger.
func NewResolver(logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	return &Resolver{Logger: logger}
}

// Resolve is a shorthand for a Resolver without logging.
func Resolve(perTest, external, defaults Layer) (EffectiveConfig, error) {
	return NewResolver(nil).Resolve(perTest, external, defaults)
}

// Resolve applies defaults, then perTest, then external, field by field,
// on top of the built-in fallbacks. Invalid values in perTest or external
// fail with an *Error. Invalid values in defaults are dropped with a
// warning, as if the field was never set.
func (r *Resolver) Resolve(perTest, external, defaults Layer) (EffectiveConfig, error) {
	if err := validate(SourcePerTest, perTest); err != nil {
		return EffectiveConfig{}, err
	}
	if err := validate(SourceExternal, external); err != nil {
		return EffectiveConfig{}, err
	}
	defaults = r.sanitize(defaults)

	merged := fallbackLayer().Apply(defaults).Apply(perTest).Apply(external)

	browser, err := ParseBrowser(merged.Browser.String)
	if err != nil {
		// Unreachable once every layer was checked, but keep the error typed.
		return EffectiveConfig{}, &Error{Source: SourceDefaults, Key: "browser", Value: merged.Browser.String, Err: err}
	}

	c := EffectiveConfig{
		url:              merged.URL.String,
		baseURL:          merged.BaseURL.String,
		path:             merged.Path.String,
		browser:          browser,
		hub:              merged.Hub.String,
		timeout:          time.Duration(merged.Timeout.Int64) * time.Second,
		retries:          int(merged.Retries.Int64),
		screenshotOnFail: merged.ScreenshotOnFail.Bool,
		capabilities:     merged.CustomCapabilities,
	}
	if c.baseURL != "" {
		c.url = JoinURL(c.baseURL, c.path)
	}
	if c.capabilities == nil {
		c.capabilities = map[string]string{}
	}
	return c, nil
}

// JoinURL joins base and path with exactly one slash between them.
func JoinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}

func fallbackLayer() Layer {
	var l Layer
	l.Timeout.SetValid(int64(DefaultTimeout / time.Second))
	l.Retries.SetValid(DefaultRetries)
	l.ScreenshotOnFail.SetValid(DefaultScreenshotOnFail)
	l.Browser.SetValid(string(BrowserNone))
	return l
}

func validate(source string, l Layer) error {
	for _, c := range layerChecks {
		if err := c.check(l); err != nil {
			v, _ := c.value(l)
			return &Error{Source: source, Key: c.key, Value: v, Err: err}
		}
	}
	return nil
}

func (r *Resolver) sanitize(l Layer) Layer {
	for _, c := range layerChecks {
		if err := c.check(l); err != nil {
			v, _ := c.value(l)
			r.Logger.Warnf("Resolver:sanitize", "ignoring default %s=%q: %v", c.key, v, err)
			c.clear(&l)
		}
	}
	return l
}
