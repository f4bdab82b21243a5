package main

import (
	"github.com/spf13/cobra"
	"github.com/tturner/cipmaster/internal/app"
)

func newValidateCmd() *cobra.Command {
	var configPath string
	var schemaPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and assembly schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunValidate(app.ValidateOptions{
				ConfigPath: configPath,
				SchemaPath: schemaPath,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cipmaster.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "Schema XML file or directory (overrides the configured path)")

	return cmd
}
