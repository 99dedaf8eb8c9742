package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/guregu/null.v3"
)

const capabilitiesPrefix = "customCapabilities."

// setter coerces a raw value into one field of a layer.
type setter func(l *Layer, value string) error

// layerKeys maps every accepted configuration key to the typed setter of
// its field. Both the camel case names of the structured document and the
// snake case names of the properties file are accepted.
var layerKeys = map[string]setter{
	"url":                stringSetter(func(l *Layer) *null.String { return &l.URL }, checkURL),
	"baseUrl":            stringSetter(func(l *Layer) *null.String { return &l.BaseURL }, checkURL),
	"base_url":           stringSetter(func(l *Layer) *null.String { return &l.BaseURL }, checkURL),
	"path":               stringSetter(func(l *Layer) *null.String { return &l.Path }, nil),
	"browser":            stringSetter(func(l *Layer) *null.String { return &l.Browser }, checkBrowser),
	"hub":                stringSetter(func(l *Layer) *null.String { return &l.Hub }, checkURL),
	"timeout":            intSetter(func(l *Layer) *null.Int { return &l.Timeout }),
	"retries":            intSetter(func(l *Layer) *null.Int { return &l.Retries }),
	"screenshotOnFail":   boolSetter(func(l *Layer) *null.Bool { return &l.ScreenshotOnFail }),
	"screenshot_on_fail": boolSetter(func(l *Layer) *null.Bool { return &l.ScreenshotOnFail }),
}

// capabilityKey extracts the capability name from keys of the form
// customCapabilities.<name>.
func capabilityKey(key string) (string, bool) {
	if !strings.HasPrefix(key, capabilitiesPrefix) {
		return "", false
	}
	name := strings.TrimPrefix(key, capabilitiesPrefix)
	return name, name != ""
}

func stringSetter(field func(*Layer) *null.String, check func(string) error) setter {
	return func(l *Layer, value string) error {
		if check != nil {
			if err := check(value); err != nil {
				return err
			}
		}
		*field(l) = null.StringFrom(value)
		return nil
	}
}

func intSetter(field func(*Layer) *null.Int) setter {
	return func(l *Layer, value string) error {
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return fmt.Errorf("should be an integer: %w", err)
		}
		if err := checkNonNegative(n); err != nil {
			return err
		}
		*field(l) = null.IntFrom(n)
		return nil
	}
}

func boolSetter(field func(*Layer) *null.Bool) setter {
	return func(l *Layer, value string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("should be a boolean: %w", err)
		}
		*field(l) = null.BoolFrom(b)
		return nil
	}
}

func checkURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("should be a URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return errors.New("should be an absolute URL")
	}
	return nil
}

func checkBrowser(s string) error {
	_, err := ParseBrowser(s)
	return err
}

func checkNonNegative(n int64) error {
	if n < 0 {
		return fmt.Errorf("should be non-negative, got %d", n)
	}
	return nil
}

// fieldCheck validates one field of a layer that was built directly in Go
// rather than through Set, and knows how to clear it.
type fieldCheck struct {
	key   string
	value func(Layer) (string, bool)
	check func(Layer) error
	clear func(*Layer)
}

func stringCheck(key string, field func(*Layer) *null.String, check func(string) error) fieldCheck {
	return fieldCheck{
		key: key,
		value: func(l Layer) (string, bool) {
			f := field(&l)
			return f.String, f.Valid
		},
		check: func(l Layer) error {
			f := field(&l)
			if !f.Valid || f.String == "" {
				return nil
			}
			return check(f.String)
		},
		clear: func(l *Layer) { *field(l) = null.String{} },
	}
}

func intCheck(key string, field func(*Layer) *null.Int) fieldCheck {
	return fieldCheck{
		key: key,
		value: func(l Layer) (string, bool) {
			f := field(&l)
			return strconv.FormatInt(f.Int64, 10), f.Valid
		},
		check: func(l Layer) error {
			f := field(&l)
			if !f.Valid {
				return nil
			}
			return checkNonNegative(f.Int64)
		},
		clear: func(l *Layer) { *field(l) = null.Int{} },
	}
}

var layerChecks = []fieldCheck{
	stringCheck("url", func(l *Layer) *null.String { return &l.URL }, checkURL),
	stringCheck("baseUrl", func(l *Layer) *null.String { return &l.BaseURL }, checkURL),
	stringCheck("browser", func(l *Layer) *null.String { return &l.Browser }, checkBrowser),
	stringCheck("hub", func(l *Layer) *null.String { return &l.Hub }, checkURL),
	intCheck("timeout", func(l *Layer) *null.Int { return &l.Timeout }),
	intCheck("retries", func(l *Layer) *null.Int { return &l.Retries }),
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
