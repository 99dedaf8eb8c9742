package config

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/conductor/log"
)

// Document is the structured configuration file. Its defaults block and
// the schemes named in CurrentSchemes make up the defaults tier.
//
//	defaults:
//	  timeout: 10
//	currentSchemes: [staging]
//	schemes:
//	  staging:
//	    baseUrl: https://staging.example.com
//	    customCapabilities:
//	      headless: "true"
type Document struct {
	Defaults       map[string]interface{}            `yaml:"defaults"`
	CurrentSchemes []string                          `yaml:"currentSchemes"`
	Schemes        map[string]map[string]interface{} `yaml:"schemes"`
}

// ParseDocument decodes a YAML configuration document.
func ParseDocument(data []byte) (*Document, error) {
	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parsing configuration document: %w", err)
	}
	return &d, nil
}

// Layer builds the defaults layer of the document: its defaults block,
// then each of schemes in order. Values that cannot be coerced are
// skipped with a warning.
func (d *Document) Layer(schemes []string, logger *log.Logger) Layer {
	l := lenientLayer("defaults", d.Defaults, logger)
	for _, name := range schemes {
		s, ok := d.Schemes[name]
		if !ok {
			logger.Warnf("Document:Layer", "scheme %q is not defined", name)
			continue
		}
		l = l.Apply(lenientLayer("schemes."+name, s, logger))
	}
	return l
}

func lenientLayer(block string, values map[string]interface{}, logger *log.Logger) Layer {
	var l Layer
	for _, k := range sortedAnyKeys(values) {
		v := values[k]
		if k == "customCapabilities" {
			setCapabilities(&l, block, v, logger)
			continue
		}
		raw, ok := scalarString(v)
		if !ok {
			logger.Warnf("Document:Layer", "ignoring %s.%s: expected a scalar, got %T", block, k, v)
			continue
		}
		known, err := l.Set(k, raw)
		switch {
		case err != nil:
			logger.Warnf("Document:Layer", "ignoring %s.%s=%q: %v", block, k, raw, err)
		case !known:
			logger.Debugf("Document:Layer", "unknown key %s.%s", block, k)
		}
	}
	return l
}

func setCapabilities(l *Layer, block string, v interface{}, logger *log.Logger) {
	caps, ok := v.(map[string]interface{})
	if !ok {
		logger.Warnf("Document:Layer", "ignoring %s.customCapabilities: expected a mapping, got %T", block, v)
		return
	}
	for _, name := range sortedAnyKeys(caps) {
		s, ok := caps[name].(string)
		if !ok {
			logger.Warnf("Document:Layer", "ignoring capability %s.%s: expected a string, got %T", block, name, caps[name])
			continue
		}
		l.setCapability(name, s)
	}
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}

func sortedAnyKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
