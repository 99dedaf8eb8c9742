package config

import (
	"errors"
	"fmt"

	"github.com/mstoykov/envconfig"
	"github.com/tidwall/gjson"
	"gopkg.in/guregu/null.v3"

	"github.com/liuxd6825/conductor/env"
)

// externalEnv lists the environment overrides. Empty values are treated
// as unset.
type externalEnv struct {
	URL                null.String `envconfig:"CONDUCTOR_URL"`
	BaseURL            null.String `envconfig:"CONDUCTOR_BASE_URL"`
	Browser            null.String `envconfig:"CONDUCTOR_BROWSER"`
	Hub                null.String `envconfig:"CONDUCTOR_HUB"`
	Timeout            null.Int    `envconfig:"CONDUCTOR_TIMEOUT"`
	Retries            null.Int    `envconfig:"CONDUCTOR_RETRIES"`
	ScreenshotsOnFail  null.Bool   `envconfig:"CONDUCTOR_SCREENSHOTS_ON_FAIL"`
	CustomCapabilities null.String `envconfig:"CONDUCTOR_CUSTOM_CAPABILITIES"`
}

// ExternalLayer reads the external override layer through lookup. A value
// that cannot be coerced yields an *Error.
func ExternalLayer(lookup env.LookupFunc) (Layer, error) {
	var e externalEnv
	err := envconfig.Process("", &e, func(key string) (string, bool) {
		v, ok := lookup(key)
		if v == "" {
			return "", false
		}
		return v, ok
	})
	if err != nil {
		var perr *envconfig.ParseError
		if errors.As(err, &perr) {
			return Layer{}, &Error{Source: SourceExternal, Key: perr.KeyName, Value: perr.Value, Err: perr.Err}
		}
		return Layer{}, &Error{Source: SourceExternal, Err: err}
	}

	l := Layer{
		URL:              e.URL,
		BaseURL:          e.BaseURL,
		Browser:          e.Browser,
		Hub:              e.Hub,
		Timeout:          e.Timeout,
		Retries:          e.Retries,
		ScreenshotOnFail: e.ScreenshotsOnFail,
	}
	if e.CustomCapabilities.Valid {
		caps, err := parseCapabilities(e.CustomCapabilities.String)
		if err != nil {
			return Layer{}, &Error{
				Source: SourceExternal,
				Key:    env.CustomCapabilities,
				Value:  e.CustomCapabilities.String,
				Err:    err,
			}
		}
		l.CustomCapabilities = caps
	}
	return l, nil
}

func parseCapabilities(raw string) (map[string]string, error) {
	if !gjson.Valid(raw) {
		return nil, errors.New("should be a JSON object")
	}
	res := gjson.Parse(raw)
	if !res.IsObject() {
		return nil, errors.New("should be a JSON object")
	}
	caps := make(map[string]string)
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			err = fmt.Errorf("capability %q should be a string, got %s", key.String(), value.Type)
			return false
		}
		caps[key.String()] = value.String()
		return true
	})
	if err != nil {
		return nil, err
	}
	return caps, nil
}
