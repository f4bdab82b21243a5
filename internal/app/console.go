package app

// Console mode: load everything, then hand control to the interactive shell.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tturner/cipmaster/internal/client"
	"github.com/tturner/cipmaster/internal/comm"
	"github.com/tturner/cipmaster/internal/config"
	"github.com/tturner/cipmaster/internal/console"
	cipmasterErrors "github.com/tturner/cipmaster/internal/errors"
	"github.com/tturner/cipmaster/internal/logging"
	"github.com/tturner/cipmaster/internal/packet"
	"github.com/tturner/cipmaster/internal/schema"
	"github.com/tturner/cipmaster/internal/waveform"
)

// ConsoleOptions carries the `run` command flags.
type ConsoleOptions struct {
	ConfigPath string
	QuickStart bool
	Verbose    bool
	Debug      bool
	Version    string
}

// RunConsole wires configuration, schema, state and the communication
// manager together and serves the interactive console until exit.
func RunConsole(opts ConsoleOptions) error {
	cfg, err := config.Load(opts.ConfigPath, opts.QuickStart)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return fmt.Errorf("load config: %w", err)
	}
	if opts.QuickStart {
		if info, statErr := os.Stat(opts.ConfigPath); statErr == nil {
			if time.Since(info.ModTime()) < 2*time.Second {
				fmt.Fprintf(os.Stdout, "Created default config file: %s\n", opts.ConfigPath)
				fmt.Fprintf(os.Stdout, "You can customize this file for your target device.\n\n")
			}
		}
	}

	logLevel := logging.ParseLevel(cfg.Log.Level)
	if opts.Debug {
		logLevel = logging.LogLevelDebug
	} else if opts.Verbose {
		logLevel = logging.LogLevelVerbose
	}
	logger, err := logging.NewLoggerWithRotation(logLevel, logging.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	doc, err := schema.Load(cfg.Schema)
	if err != nil {
		userErr := cipmasterErrors.WrapSchemaError(err, cfg.Schema)
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", userErr)
		return fmt.Errorf("load schema: %w", err)
	}
	logger.Info("schema loaded: %s (O->T %d bits, T->O %d bits)",
		doc.Path, doc.OT.TotalBits, doc.TO.TotalBits)

	state := comm.NewSharedState(packet.New(doc.OT), packet.New(doc.TO))

	manager := comm.NewManager(comm.Options{
		Dial: comm.ProductionDial(logger),
		Client: client.Config{
			TargetIP:       cfg.Target.IP,
			MulticastGroup: cfg.Target.Multicast,
			Interface:      cfg.Target.Interface,
			ReceiveTimeout: time.Duration(cfg.Comm.ReceiveTimeoutMs) * time.Millisecond,
		},
		Bindings: comm.Bindings{
			Heartbeat: cfg.Bindings.Heartbeat,
			Timestamp: cfg.Bindings.Timestamp,
		},
		RetryBackoff: time.Duration(cfg.Comm.RetryBackoffMs) * time.Millisecond,
	}, state, logger)
	if cfg.Comm.AutoReconnect {
		manager.EnableAuto()
	}

	waves := waveform.NewManager(state, waveform.DefaultSampleInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received interrupt signal, shutting down")
		cancel()
		waves.StopAll()
		manager.Stop()
		os.Exit(130)
	}()

	shell := console.New(console.Options{
		State:   state,
		Manager: manager,
		Waves:   waves,
		Config:  cfg,
		Logger:  logger,
		Version: opts.Version,
		OTName:  doc.OTID,
		TOName:  doc.TOID,
	})
	return shell.Run(ctx)
}
