package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/liuxd6825/conductor/log"
)

// ParseProperties reads a key=value properties file. Only keys outside of
// any section are considered.
func ParseProperties(data []byte) (map[string]string, error) {
	f, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:     true,
		SkipUnrecognizableLines: true,
	}, data)
	if err != nil {
		return nil, fmt.Errorf("parsing properties: %w", err)
	}
	return f.Section(ini.DefaultSection).KeysHash(), nil
}

// PropertiesLayer builds a layer from properties leniently: values that
// cannot be coerced are skipped with a warning.
func PropertiesLayer(props map[string]string, logger *log.Logger) Layer {
	var l Layer
	for _, k := range sortedKeys(props) {
		known, err := l.Set(k, props[k])
		switch {
		case err != nil:
			logger.Warnf("Properties:Layer", "ignoring %s=%q: %v", k, props[k], err)
		case !known:
			logger.Debugf("Properties:Layer", "unknown key %s", k)
		}
	}
	return l
}
