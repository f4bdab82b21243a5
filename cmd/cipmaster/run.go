package main

import (
	"github.com/spf13/cobra"
	"github.com/tturner/cipmaster/internal/app"
)

type runFlags struct {
	config     string
	quickStart bool
	verbose    bool
	debug      bool
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive console",
		Long: `Load the configuration and assembly schema, then serve the interactive
console. Communication with the target is started from the console with
the 'start' or 'auto' commands.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunConsole(app.ConsoleOptions{
				ConfigPath: flags.config,
				QuickStart: flags.quickStart,
				Verbose:    flags.verbose,
				Debug:      flags.debug,
				Version:    version,
			})
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "cipmaster.yaml", "Path to configuration file")
	cmd.Flags().BoolVar(&flags.quickStart, "quick-start", false, "Create a default config file if missing")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose console output")
	cmd.Flags().BoolVarP(&flags.debug, "debug", "d", false, "Debug output including frame hex dumps")

	return cmd
}
