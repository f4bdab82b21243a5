package app

// Validate mode: run the configuration checks and print the check table.

import (
	"fmt"
	"os"

	"github.com/tturner/cipmaster/internal/config"
	"github.com/tturner/cipmaster/internal/schema"
)

// ValidateOptions carries the `validate` command flags.
type ValidateOptions struct {
	ConfigPath string
	SchemaPath string // overrides the configured schema path when set
}

// RunValidate loads the tool configuration, validates the assembly schema
// and prints one line per check. A failed check makes the run fail.
func RunValidate(opts ValidateOptions) error {
	schemaPath := opts.SchemaPath
	if schemaPath == "" {
		cfg, err := config.Load(opts.ConfigPath, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return fmt.Errorf("load config: %w", err)
		}
		fmt.Fprintf(os.Stdout, "Configuration: %s [OK]\n", opts.ConfigPath)
		schemaPath = cfg.Schema
	}

	report := schema.Validate(schemaPath)
	if report.Path != "" {
		fmt.Fprintf(os.Stdout, "Schema: %s\n\n", report.Path)
	}
	for _, check := range report.Checks {
		fmt.Fprintf(os.Stdout, "  %-45s %s\n", check.Name, check.Status)
	}
	if !report.OK {
		return fmt.Errorf("schema validation failed")
	}
	fmt.Fprintln(os.Stdout, "\nAll checks passed.")
	return nil
}
