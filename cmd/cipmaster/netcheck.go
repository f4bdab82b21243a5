package main

import (
	"github.com/spf13/cobra"
	"github.com/tturner/cipmaster/internal/app"
)

func newNetcheckCmd() *cobra.Command {
	var configPath string
	var targetIP string
	var multicastIP string

	cmd := &cobra.Command{
		Use:   "netcheck",
		Short: "Run the network preflight checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.RunNetcheck(app.NetcheckOptions{
				ConfigPath:  configPath,
				TargetIP:    targetIP,
				MulticastIP: multicastIP,
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cipmaster.yaml", "Path to configuration file")
	cmd.Flags().StringVar(&targetIP, "target", "", "Target device IP address (defaults to the configured one)")
	cmd.Flags().StringVar(&multicastIP, "multicast", "", "Multicast group address (defaults to the configured one)")

	return cmd
}
