/*
 *
 * conductor - synchronization engine for browser tests
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/conductor/common"
	"github.com/liuxd6825/conductor/config"
	"github.com/liuxd6825/conductor/env"
	"github.com/liuxd6825/conductor/errext"
	"github.com/liuxd6825/conductor/errext/exitcodes"
)

// BannerColor is the color of the root command description.
var BannerColor = color.New(color.FgCyan) //nolint:gochecknoglobals

// This is to keep all fields needed for the main/root conductor command
type rootCommand struct {
	gs  *globalState
	cmd *cobra.Command
}

func newRootCommand(gs *globalState) *rootCommand {
	c := &rootCommand{gs: gs}
	// the base command when called without any subcommands.
	c.cmd = &cobra.Command{
		Use:               "conductor",
		Short:             "synchronization engine for browser tests",
		Long:              BannerColor.Sprint("conductor - synchronization engine for browser tests"),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.persistentPreRunE,
	}
	c.cmd.SetOut(gs.stdout)
	c.cmd.SetErr(gs.stderr)
	c.cmd.PersistentFlags().AddFlagSet(c.rootCmdPersistentFlagSet())

	c.cmd.AddCommand(
		getConfigCmd(gs),
		getProbeCmd(gs),
		getVersionCmd(gs),
	)
	return c
}

func (c *rootCommand) persistentPreRunE(*cobra.Command, []string) error {
	if err := c.setupLoggers(); err != nil {
		return err
	}
	c.gs.logger.Debugf("conductor version: v%s", Version)
	return nil
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gs := newGlobalState(ctx)
	c := newRootCommand(gs)
	if err := c.cmd.Execute(); err != nil {
		cancel()
		os.Exit(int(c.handleError(err)))
	}
}

// handleError logs err with its hint and returns the process exit code.
func (c *rootCommand) handleError(err error) exitcodes.ExitCode {
	err = classify(err)
	msg, fields := errext.Format(err)
	c.gs.logger.WithFields(fields).Error(msg)
	return errext.ExitCodeOf(err, exitcodes.GenericError)
}

// classify attaches exit codes and hints to the errors of the conductor
// packages that don't carry their own.
func classify(err error) error {
	var cerr *config.Error
	switch {
	case errors.As(err, &cerr):
		err = errext.WithHint(err, "check the "+cerr.Source+" configuration for key "+cerr.Key)
		return errext.WithExitCodeIfNone(err, exitcodes.InvalidConfig)
	case common.IsAssertionFailure(err):
		return errext.WithExitCodeIfNone(err, exitcodes.AssertionFailed)
	case errors.Is(err, context.Canceled):
		return errext.WithExitCodeIfNone(err, exitcodes.ExternalAbort)
	default:
		return err
	}
}

func (c *rootCommand) rootCmdPersistentFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	gf := &c.gs.flags
	flags.BoolVarP(&gf.verbose, "verbose", "v", gf.verbose, "enable debug logging")
	flags.BoolVar(&gf.noColor, "no-color", gf.noColor, "disable colored output")
	flags.StringVar(&gf.logFormat, "log-format", gf.logFormat, "log output format, one of text, json, raw")
	flags.StringVar(&gf.propertiesPath, "properties", gf.propertiesPath, "defaults properties file")
	flags.StringVarP(&gf.documentPath, "config", "c", gf.documentPath, "YAML configuration document with schemes")
	must(cobra.MarkFlagFilename(flags, "properties"))
	must(cobra.MarkFlagFilename(flags, "config", "yaml", "yml"))
	return flags
}

// RawFormatter it does nothing with the message just prints it
type RawFormatter struct{}

// Format renders a single log entry
func (f RawFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}

func (c *rootCommand) setupLoggers() error {
	gs := c.gs
	if _, ok := gs.lookupEnv("NO_COLOR"); ok {
		gs.flags.noColor = true
	}
	if gs.flags.noColor {
		if cw, ok := gs.stderr.(*consoleWriter); ok {
			cw.Writer = colorable.NewNonColorable(os.Stderr)
		}
		if cw, ok := gs.stdout.(*consoleWriter); ok {
			cw.Writer = colorable.NewNonColorable(os.Stdout)
		}
	}

	if lvl, ok := gs.lookupEnv(env.LogLevel); ok && lvl != "" {
		if err := gs.categoryLogger().SetLevel(lvl); err != nil {
			return errext.WithHint(
				fmt.Errorf("invalid %s: %w", env.LogLevel, err),
				"should be one of: panic, fatal, error, warn, warning, info, debug, trace",
			)
		}
	}
	if gs.flags.verbose {
		gs.logger.SetLevel(logrus.DebugLevel)
	}

	switch gs.flags.logFormat {
	case "raw":
		gs.logger.SetFormatter(&RawFormatter{})
	case "json":
		gs.logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		gs.logger.SetFormatter(&logrus.TextFormatter{ForceColors: gs.stderrTTY, DisableColors: gs.flags.noColor})
	default:
		return fmt.Errorf("unsupported log format %q", gs.flags.logFormat)
	}
	return nil
}

// Panic if the given error is not nil.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
