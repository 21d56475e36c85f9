// Package config manages the lineus CLI preferences file.
//
// The file is YAML and holds connection and scan settings only. Devices
// found by discovery or scanning are never written to it.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/lineus/config.yaml or $HOME/.config/lineus/config.yaml
//   - macOS: $HOME/.config/lineus/config.yaml
//   - Windows: %LOCALAPPDATA%\lineus\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	device, err := lineus.New(ctx, cfg.ToDeviceConfig())
//
// Command-line flags take precedence over file values; the CLI applies
// them after loading.
package config
