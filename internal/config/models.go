package config

import (
	"fmt"
	"time"

	"github.com/lineus/lineus"
	"github.com/lineus/lineus/internal/logging"
)

// CurrentVersion is the config file format version
const CurrentVersion = 1

// Config holds user preferences for the lineus CLI.
// Discovered devices are never stored; discovery always runs fresh.
type Config struct {
	Version          int     `yaml:"version"`
	Port             int     `yaml:"port"`                     // Device command port
	ConnectTimeoutMs int     `yaml:"connect_timeout_ms"`       // TCP connect + greeting timeout
	ReadTimeoutMs    int     `yaml:"read_timeout_ms"`          // Response timeout, 0 = wait forever
	DiscoveryWaitMs  int     `yaml:"discovery_wait_ms"`        // mDNS wait when no device is given
	ProbeTimeoutMs   int     `yaml:"probe_timeout_ms"`         // Per-host scan timeout
	Workers          int     `yaml:"workers"`                  // Parallel scan workers
	ProbeRate        float64 `yaml:"probe_rate,omitempty"`     // Scan probes per second, 0 = unlimited
	LogLevel         string  `yaml:"log_level,omitempty"`      // debug, info, warn, error
	DefaultDevice    string  `yaml:"default_device,omitempty"` // Target used when --device is not given
}

// Default returns the built-in preferences
func Default() *Config {
	d := lineus.DefaultConfig()
	return &Config{
		Version:          CurrentVersion,
		Port:             d.Port,
		ConnectTimeoutMs: int(d.ConnectTimeout / time.Millisecond),
		ReadTimeoutMs:    int(d.ReadTimeout / time.Millisecond),
		DiscoveryWaitMs:  int(d.DiscoveryWait / time.Millisecond),
		ProbeTimeoutMs:   int(d.ProbeTimeout / time.Millisecond),
		Workers:          d.Workers,
	}
}

// Validate checks that every value is usable
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", c.Port)
	}
	if c.Workers < 1 || c.Workers > 1024 {
		return fmt.Errorf("workers %d out of range (1-1024)", c.Workers)
	}

	durations := []struct {
		name  string
		value int
	}{
		{"connect_timeout_ms", c.ConnectTimeoutMs},
		{"read_timeout_ms", c.ReadTimeoutMs},
		{"discovery_wait_ms", c.DiscoveryWaitMs},
		{"probe_timeout_ms", c.ProbeTimeoutMs},
	}
	for _, d := range durations {
		if d.value < 0 {
			return fmt.Errorf("%s must not be negative (got %d)", d.name, d.value)
		}
	}

	if c.ProbeRate < 0 {
		return fmt.Errorf("probe_rate must not be negative (got %v)", c.ProbeRate)
	}
	if c.LogLevel != "" && !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("unknown log_level %q (expected debug, info, warn or error)", c.LogLevel)
	}
	return nil
}

// ToDeviceConfig converts preferences into a lineus.Config
func (c *Config) ToDeviceConfig() lineus.Config {
	cfg := lineus.DefaultConfig()
	cfg.Port = c.Port
	cfg.ConnectTimeout = ms(c.ConnectTimeoutMs)
	cfg.ReadTimeout = ms(c.ReadTimeoutMs)
	cfg.DiscoveryWait = ms(c.DiscoveryWaitMs)
	cfg.ProbeTimeout = ms(c.ProbeTimeoutMs)
	cfg.Workers = c.Workers
	cfg.ProbeRate = c.ProbeRate
	return cfg
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
