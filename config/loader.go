package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"

	"github.com/liuxd6825/conductor/env"
	"github.com/liuxd6825/conductor/log"
)

// Default locations of the configuration files, relative to the working
// directory.
const (
	DefaultPropertiesPath = "default.properties"
	DefaultDocumentPath   = "config.yaml"
)

// Loader gathers the configuration layers of a run. It is built once and
// shared by every session of the run.
type Loader struct {
	FS             afero.Fs
	LookupEnv      env.LookupFunc
	Logger         *log.Logger
	PropertiesPath string
	DocumentPath   string
}

// NewLoader returns a loader reading the default file locations from fs.
func NewLoader(afs afero.Fs, lookup env.LookupFunc, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	if lookup == nil {
		lookup = env.EmptyLookup
	}
	return &Loader{
		FS:             afs,
		LookupEnv:      lookup,
		Logger:         logger,
		PropertiesPath: DefaultPropertiesPath,
		DocumentPath:   DefaultDocumentPath,
	}
}

// Defaults builds the defaults tier: the properties file, then the
// document's defaults block, then its current schemes in order. Missing
// files are skipped. It also returns the scheme names that were applied.
func (ld *Loader) Defaults() (Layer, []string, error) {
	var l Layer

	props, err := ld.readFile(ld.PropertiesPath)
	if err != nil {
		return Layer{}, nil, err
	}
	if props != nil {
		kv, err := ParseProperties(props)
		if err != nil {
			return Layer{}, nil, err
		}
		l = l.Apply(PropertiesLayer(kv, ld.Logger))
	}

	data, err := ld.readFile(ld.DocumentPath)
	if err != nil {
		return Layer{}, nil, err
	}
	var schemes []string
	if data != nil {
		doc, err := ParseDocument(data)
		if err != nil {
			return Layer{}, nil, err
		}
		schemes = doc.CurrentSchemes
		if s, ok := env.CurrentSchemesFrom(ld.LookupEnv); ok {
			schemes = s
		}
		l = l.Apply(doc.Layer(schemes, ld.Logger))
	}
	return l, schemes, nil
}

// External reads the environment override layer.
func (ld *Loader) External() (Layer, error) {
	return ExternalLayer(ld.LookupEnv)
}

// Load resolves the effective configuration of a session declaring
// perTest.
func (ld *Loader) Load(perTest Layer) (EffectiveConfig, error) {
	defaults, schemes, err := ld.Defaults()
	if err != nil {
		return EffectiveConfig{}, err
	}
	external, err := ld.External()
	if err != nil {
		return EffectiveConfig{}, err
	}
	c, err := NewResolver(ld.Logger).Resolve(perTest, external, defaults)
	if err != nil {
		return EffectiveConfig{}, err
	}
	ld.Logger.Debugf("Loader:Load", "url:%q browser:%s timeout:%s retries:%d schemes:%v",
		c.URL(), c.Browser(), c.Timeout(), c.Retries(), schemes)
	return c.WithCurrentSchemes(schemes), nil
}

func (ld *Loader) readFile(path string) ([]byte, error) {
	if path == "" || ld.FS == nil {
		return nil, nil
	}
	data, err := afero.ReadFile(ld.FS, path)
	if errors.Is(err, fs.ErrNotExist) {
		ld.Logger.Debugf("Loader:readFile", "%s not found, skipping", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
