package cmd

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/liuxd6825/conductor/chromium"
	"github.com/liuxd6825/conductor/common"
	"github.com/liuxd6825/conductor/config"
	"github.com/liuxd6825/conductor/env"
	"github.com/liuxd6825/conductor/log"
)

// driverFactory acquires a browser session for a configuration.
type driverFactory func(ctx context.Context, cfg config.EffectiveConfig, logger *log.Logger) (common.Driver, error)

// globalState contains the process wide dependencies of the commands, so
// that tests can swap them out.
type globalState struct {
	ctx context.Context

	fs        afero.Fs
	lookupEnv env.LookupFunc

	stdout, stderr io.Writer
	stdoutTTY      bool
	stderrTTY      bool

	logger    *logrus.Logger
	newDriver driverFactory

	flags globalFlags
}

// globalFlags are the flags shared by all sub-commands.
type globalFlags struct {
	verbose        bool
	noColor        bool
	logFormat      string
	propertiesPath string
	documentPath   string
}

func newGlobalState(ctx context.Context) *globalState {
	stdoutTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	stderrTTY := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	outMx := &sync.Mutex{}
	stdout := &consoleWriter{colorable.NewColorableStdout(), outMx}
	stderr := &consoleWriter{colorable.NewColorableStderr(), outMx}

	logger := &logrus.Logger{
		Out:       stderr,
		Formatter: new(logrus.TextFormatter),
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}

	return &globalState{
		ctx:       ctx,
		fs:        afero.NewOsFs(),
		lookupEnv: env.Lookup,
		stdout:    stdout,
		stderr:    stderr,
		stdoutTTY: stdoutTTY,
		stderrTTY: stderrTTY,
		logger:    logger,
		newDriver: launchDriver,
		flags: globalFlags{
			propertiesPath: config.DefaultPropertiesPath,
			documentPath:   config.DefaultDocumentPath,
		},
	}
}

func launchDriver(ctx context.Context, cfg config.EffectiveConfig, logger *log.Logger) (common.Driver, error) {
	d, err := chromium.NewBrowserType(logger).NewDriver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// consoleWriter serializes writes of stdout and stderr.
type consoleWriter struct {
	io.Writer
	mutex *sync.Mutex
}

func (w *consoleWriter) Write(p []byte) (n int, err error) {
	w.mutex.Lock()
	n, err = w.Writer.Write(p)
	w.mutex.Unlock()
	return
}

// categoryLogger wraps the process logger for the conductor packages.
func (gs *globalState) categoryLogger() *log.Logger {
	return log.New(gs.logger, false, nil)
}

// loader builds the configuration loader from the global flags.
func (gs *globalState) loader() *config.Loader {
	ld := config.NewLoader(gs.fs, gs.lookupEnv, gs.categoryLogger())
	ld.PropertiesPath = gs.flags.propertiesPath
	ld.DocumentPath = gs.flags.documentPath
	return ld
}
