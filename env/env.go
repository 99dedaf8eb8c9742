// Package env names the environment overrides conductor understands and
// provides the lookup abstraction used to read them.
package env

import (
	"os"
	"strings"
)

// LookupFunc defines a function to look up a key from the environment.
type LookupFunc func(key string) (string, bool)

// Environment variables that override the per-test and default configuration.
const (
	URL                = "CONDUCTOR_URL"
	BaseURL            = "CONDUCTOR_BASE_URL"
	Browser            = "CONDUCTOR_BROWSER"
	Hub                = "CONDUCTOR_HUB"
	Timeout            = "CONDUCTOR_TIMEOUT"
	Retries            = "CONDUCTOR_RETRIES"
	ScreenshotsOnFail  = "CONDUCTOR_SCREENSHOTS_ON_FAIL"
	CustomCapabilities = "CONDUCTOR_CUSTOM_CAPABILITIES"
	CurrentSchemes     = "CONDUCTOR_CURRENT_SCHEMES"
	LogLevel           = "CONDUCTOR_LOG_LEVEL"
)

// Lookup is a LookupFunc reading from the process environment.
// The environment is expected to stay unchanged once a run starts.
func Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// EmptyLookup is a LookupFunc that never finds a key.
func EmptyLookup(string) (string, bool) {
	return "", false
}

// MapLookup returns a LookupFunc backed by m.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// CurrentSchemesFrom returns the scheme names set through the
// CONDUCTOR_CURRENT_SCHEMES environment variable. The second return
// value reports whether the variable was set at all: a set but empty
// variable clears the schemes of the configuration document.
//
// CONDUCTOR_CURRENT_SCHEMES is a comma separated list of scheme names.
func CurrentSchemesFrom(envLookup LookupFunc) ([]string, bool) {
	raw, ok := envLookup(CurrentSchemes)
	if !ok {
		return nil, false
	}
	var schemes []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			schemes = append(schemes, s)
		}
	}
	return schemes, true
}
