package app

// Netcheck mode: network preflight against the target and multicast group.

import (
	"fmt"
	"os"

	"github.com/tturner/cipmaster/internal/config"
	"github.com/tturner/cipmaster/internal/netcheck"
)

// NetcheckOptions carries the `netcheck` command flags. Target and multicast
// fall back to the configured addresses when left empty.
type NetcheckOptions struct {
	ConfigPath  string
	TargetIP    string
	MulticastIP string
}

// RunNetcheck executes the preflight checks and prints the result table.
func RunNetcheck(opts NetcheckOptions) error {
	target := opts.TargetIP
	mcast := opts.MulticastIP
	if target == "" || mcast == "" {
		cfg, err := config.Load(opts.ConfigPath, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			return fmt.Errorf("load config: %w", err)
		}
		if target == "" {
			target = cfg.Target.IP
		}
		if mcast == "" {
			mcast = cfg.Target.Multicast
		}
	}

	fmt.Fprintf(os.Stdout, "Target: %s  Multicast: %s\n\n", target, mcast)
	result := netcheck.Run(netcheck.Config{TargetIP: target, MulticastIP: mcast})
	for _, check := range result.Checks {
		fmt.Fprintf(os.Stdout, "  %-35s %s\n", check.Name, check.Status)
	}
	if !result.OK {
		return fmt.Errorf("network checks failed")
	}
	fmt.Fprintln(os.Stdout, "\nNetwork checks passed.")
	return nil
}
