package config

// Configuration loading and validation for cipmaster

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tturner/cipmaster/internal/errors"
	"github.com/tturner/cipmaster/internal/netcheck"
)

// TargetConfig names the device and the I/O multicast group.
type TargetConfig struct {
	IP        string `yaml:"ip"`
	Multicast string `yaml:"multicast"`
	Interface string `yaml:"interface,omitempty"` // receive interface, empty = all
}

// BindingsConfig names the O->T fields the streaming loop maintains.
type BindingsConfig struct {
	Heartbeat string `yaml:"heartbeat"`
	Timestamp string `yaml:"timestamp"`
}

// CommConfig tunes the exchange loop.
type CommConfig struct {
	ReceiveTimeoutMs int  `yaml:"receive_timeout_ms"`
	RetryBackoffMs   int  `yaml:"retry_backoff_ms"`
	AutoReconnect    bool `yaml:"auto_reconnect"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level      string `yaml:"level"` // silent, error, info, verbose, debug
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// Config is the tool configuration.
type Config struct {
	Target   TargetConfig   `yaml:"target"`
	Schema   string         `yaml:"schema"` // XML file or directory holding one
	Bindings BindingsConfig `yaml:"bindings"`
	Comm     CommConfig     `yaml:"comm"`
	Log      LogConfig      `yaml:"log"`
}

// defaultYAML is written by --init and documents every knob.
const defaultYAML = `# cipmaster configuration
target:
  ip: 10.0.1.1
  multicast: 239.192.1.3
  # interface: eth0

# Path to the assembly schema XML file, or a directory holding exactly one.
schema: ./config

# O->T fields written by the streaming loop each cycle.
bindings:
  heartbeat: MPU_CTCMSAlive
  timestamp: MPU_CDateTimeSec

comm:
  receive_timeout_ms: 500
  retry_backoff_ms: 2000
  auto_reconnect: false

log:
  level: info
  file: ./log/cipmaster.log
  max_size_mb: 10
  max_backups: 3
`

// Load reads and validates the configuration. With autoCreate set, a
// missing file is created from the documented defaults first.
func Load(path string, autoCreate bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && autoCreate {
			if err := WriteDefault(path); err != nil {
				return nil, fmt.Errorf("create default config: %w", err)
			}
			data, err = os.ReadFile(path)
			if err != nil {
				return nil, errors.WrapConfigError(fmt.Errorf("read created config file: %w", err), path)
			}
		} else {
			return nil, errors.WrapConfigError(fmt.Errorf("read config file: %w", err), path)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Errorf("parse YAML: %w", err), path)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapConfigError(err, path)
	}
	return &cfg, nil
}

// WriteDefault writes the documented default configuration.
func WriteDefault(path string) error {
	return os.WriteFile(path, []byte(defaultYAML), 0o644)
}

func (c *Config) applyDefaults() {
	if c.Bindings.Heartbeat == "" {
		c.Bindings.Heartbeat = "MPU_CTCMSAlive"
	}
	if c.Bindings.Timestamp == "" {
		c.Bindings.Timestamp = "MPU_CDateTimeSec"
	}
	if c.Comm.ReceiveTimeoutMs == 0 {
		c.Comm.ReceiveTimeoutMs = 500
	}
	if c.Comm.RetryBackoffMs == 0 {
		c.Comm.RetryBackoffMs = 2000
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the parts that can be checked without touching the
// network or the filesystem.
func (c *Config) Validate() error {
	if c.Target.IP == "" {
		return fmt.Errorf("target.ip is required")
	}
	if _, err := netcheck.ValidateIPv4(c.Target.IP); err != nil {
		return fmt.Errorf("target.ip: %w", err)
	}
	if c.Target.Multicast == "" {
		return fmt.Errorf("target.multicast is required")
	}
	if _, err := netcheck.ValidateMulticastIPv4(c.Target.Multicast); err != nil {
		return fmt.Errorf("target.multicast: %w", err)
	}
	if c.Schema == "" {
		return fmt.Errorf("schema path is required")
	}
	if c.Comm.ReceiveTimeoutMs < 0 || c.Comm.RetryBackoffMs < 0 {
		return fmt.Errorf("comm timeouts must not be negative")
	}
	return nil
}
