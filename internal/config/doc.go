// Package config provides user configuration management for twrpdtgen.
//
// This package manages a YAML-based configuration file that stores the
// git author identity used for generated device-tree commits, output
// preferences, and a record of previously generated trees. The
// configuration follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/twrpdtgen/config.yaml or $HOME/.config/twrpdtgen/config.yaml
//   - macOS: $HOME/.config/twrpdtgen/config.yaml
//   - Windows: %LOCALAPPDATA%\twrpdtgen\config.yaml
//
// # Usage Example
//
//	// Load the global registry
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Record a generation run
//	registry.RecordGeneration("hero2lte", "samsung",
//	    "boot.img", "output/samsung/hero2lte")
//
//	// Save changes atomically
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File operations are protected by a mutex to ensure atomic writes.
package config
