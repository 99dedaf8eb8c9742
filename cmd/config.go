package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/liuxd6825/conductor/config"
)

type cmdConfig struct {
	gs     *globalState
	set    []string
	format string
}

func getConfigCmd(gs *globalState) *cobra.Command {
	c := &cmdConfig{gs: gs, format: "json"}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the resolved configuration.

The defaults properties file and the configuration document are merged with
the --set values, then the CONDUCTOR_* environment variables are applied on top.`,
		Example: `
  conductor config --set url=https://example.com --set retries=3
  CONDUCTOR_TIMEOUT=30 conductor config --format yaml`[1:],
		Args: cobra.NoArgs,
		RunE: c.run,
	}
	configCmd.Flags().AddFlagSet(c.flagSet())
	return configCmd
}

func (c *cmdConfig) flagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.SortFlags = false
	flags.StringArrayVarP(&c.set, "set", "s", nil, "per-test configuration value as `key=value`")
	flags.StringVarP(&c.format, "format", "f", c.format, "output format, one of json, yaml")
	return flags
}

func (c *cmdConfig) run(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(c.gs, c.set)
	if err != nil {
		return err
	}

	var out []byte
	switch c.format {
	case "json":
		out, err = json.MarshalIndent(cfg, "", "  ")
		out = append(out, '\n')
	case "yaml":
		out, err = yaml.Marshal(cfg)
	default:
		return fmt.Errorf("unsupported output format %q", c.format)
	}
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// resolveConfig loads the effective configuration with set as the
// per-test values.
func resolveConfig(gs *globalState, set []string) (config.EffectiveConfig, error) {
	kv, err := parseSetFlags(set)
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	perTest, err := config.ParseLayer(config.SourcePerTest, kv)
	if err != nil {
		return config.EffectiveConfig{}, err
	}
	return gs.loader().Load(perTest)
}

func parseSetFlags(set []string) (map[string]string, error) {
	kv := make(map[string]string, len(set))
	for _, s := range set {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --set value %q, expected key=value", s)
		}
		kv[strings.TrimSpace(k)] = v
	}
	return kv, nil
}
