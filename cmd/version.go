package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is the conductor version, set at build time.
var Version = "0.1.0" //nolint:gochecknoglobals

func versionDetails() map[string]string {
	return map[string]string{
		"version":    Version,
		"go_version": runtime.Version(),
		"go_os":      runtime.GOOS,
		"go_arch":    runtime.GOARCH,
	}
}

func getVersionCmd(_ *globalState) *cobra.Command {
	var isJSON bool
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show application version",
		Long:  `Show the application version and exit.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !isJSON {
				d := versionDetails()
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "conductor v%s (%s, %s/%s)\n",
					d["version"], d["go_version"], d["go_os"], d["go_arch"])
				return err
			}
			b, err := json.Marshal(versionDetails())
			if err != nil {
				return fmt.Errorf("failed produce a JSON version details: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	versionCmd.Flags().BoolVar(&isJSON, "json", false, "if set, output version information will be in JSON format")
	return versionCmd
}
