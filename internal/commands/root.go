// Package commands implements the sheetbridge command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gerunddev/sheetbridge/internal/config"
	"github.com/gerunddev/sheetbridge/internal/state"
)

// NewRootCommand builds the command tree
func NewRootCommand(version string) *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "sheetbridge",
		Short: "Two-way sync between a sheet library and a Markdown folder",
		Long: fmt.Sprintf(`sheetbridge exports every sheet of the library to a folder of Markdown
files and brings edits made to those files back into the library. Edits
that collide with changes in the library land in the inbox instead.

Configuration:
  Config file: %s
  Sync state:  <export folder>/%s
  Environment: %s_<KEY> overrides any config key`, config.ConfigPath(), state.SentinelName, config.EnvPrefix),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configFile != "" {
				path := configFile
				config.ConfigPath = func() string { return path }
			}
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default "+config.ConfigPath()+")")

	root.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "inspect", Title: "Inspect:"},
		&cobra.Group{ID: "service", Title: "Background service:"},
	)

	root.AddCommand(
		newSyncCommand(),
		newExportCommand(),
		newConvertCommand(),
		newStatusCommand(),
		newDiffCommand(),
		newBrowseCommand(),
		newWatchCommand(),
		newStartCommand(),
		newStopCommand(),
		newDashboardCommand(),
		newInstallCommand(),
		newUninstallCommand(),
		newVersionCommand(version),
	)
	return root
}

// Execute runs the command line and reports errors
func Execute(version string) int {
	if err := NewRootCommand(version).Execute(); err != nil {
		printError(err)
		return 1
	}
	return 0
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sheetbridge v%s\n", version)
		},
	}
}
