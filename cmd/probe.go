package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/liuxd6825/conductor/common"
	"github.com/liuxd6825/conductor/storage"
)

type cmdProbe struct {
	gs *globalState

	set         []string
	name        string
	selector    string
	window      string
	frame       string
	uploadURL   string
	showMetrics bool
}

func getProbeCmd(gs *globalState) *cobra.Command {
	c := &cmdProbe{gs: gs, name: "probe"}

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "Open the configured url and wait for a page state",
		Long: `Open the configured url and wait for a page state.

A browser session is acquired from the resolved configuration. The probe then
optionally switches to a window whose title or url matches --window, enters
the frame named --frame and waits for an element matching --selector, using
the configured retries and timeout.`,
		Example: `
  conductor probe --set url=https://example.com --selector "h1"
  conductor probe --window "Checkout.*" --frame payment --selector "#card"`[1:],
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	probeCmd.Flags().AddFlagSet(c.flagSet())
	return probeCmd
}

func (c *cmdProbe) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringArrayVarP(&c.set, "set", "s", nil, "per-test configuration value as `key=value`")
	flags.StringVar(&c.name, "name", c.name, "test name, used for the failure screenshot file")
	flags.StringVar(&c.selector, "selector", "", "CSS selector of an element to wait for")
	flags.StringVar(&c.window, "window", "", "regular expression matching the title or url of the window to switch to")
	flags.StringVar(&c.frame, "frame", "", "name or id of the frame to switch to")
	flags.StringVar(&c.uploadURL, "screenshot-upload", "",
		"upload failure screenshots through this pre-signed url service instead of writing them locally")
	flags.BoolVar(&c.showMetrics, "metrics", false, "print the wait metrics when done")
	return flags
}

func (c *cmdProbe) run(cmd *cobra.Command, _ []string) error {
	gs := c.gs
	logger := gs.categoryLogger()

	cfg, err := resolveConfig(gs, c.set)
	if err != nil {
		return err
	}

	driver, err := gs.newDriver(gs.ctx, cfg, logger)
	if err != nil {
		return err
	}

	var persister common.Persister = storage.NewLocalFilePersister(gs.fs)
	if c.uploadURL != "" {
		persister = storage.NewRemoteFilePersister(c.uploadURL, nil, "")
	}
	reg := prometheus.NewRegistry()
	session := common.NewSession(driver, cfg,
		common.WithLogger(logger),
		common.WithMetrics(common.NewMetrics(reg)),
		common.WithPersister(persister, common.DefaultScreenshotDir),
	)

	out := cmd.OutOrStdout()
	err = session.Run(gs.ctx, c.name, func(ctx context.Context, s *common.Session) error {
		return c.probe(ctx, s, out)
	})
	if c.showMetrics {
		if merr := printMetrics(out, reg); merr != nil {
			logger.Warnf("probe", "printing metrics: %v", merr)
		}
	}
	return err
}

func (c *cmdProbe) probe(ctx context.Context, s *common.Session, out io.Writer) error {
	if u := s.Config().URL(); u != "" {
		if err := s.NavigateTo(ctx, u); err != nil {
			return err
		}
	}
	if c.window != "" {
		if err := s.SwitchToWindow(ctx, c.window); err != nil {
			return err
		}
	}
	if c.frame != "" {
		if err := s.SwitchToFrame(ctx, common.FrameByName(c.frame)); err != nil {
			return err
		}
	}

	d := s.Driver()
	u, err := d.CurrentURL(ctx)
	if err != nil {
		return err
	}
	title, err := d.Title(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "url:   %s\ntitle: %s\n", u, title)

	if c.selector == "" {
		return nil
	}
	loc := common.ByCSS(c.selector)
	el, err := s.WaitForElement(ctx, loc)
	if err != nil {
		return err
	}
	tag, err := el.TagName(ctx)
	if err != nil {
		return err
	}
	text, err := s.GetText(ctx, loc)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "found: <%s> %q\n", tag, text)
	return nil
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
