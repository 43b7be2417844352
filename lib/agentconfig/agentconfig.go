// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package agentconfig discovers the installed agent runtime: where its
// session storage lives, which version is installed, and what its own
// configuration file says. The harness consults it when the keepsake
// config leaves storage.data_root or storage.agent_version empty.
//
// The runtime follows XDG conventions: its config lives under
// $XDG_CONFIG_HOME/<binary>/ and its storage under
// $XDG_DATA_HOME/<binary>/storage. The config file is JSONC (JSON with
// comments and trailing commas), the format the runtime itself accepts.
package agentconfig

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Options configures runtime discovery. Only Binary is required;
// every other field short-circuits one discovery step.
type Options struct {
	// Binary is the agent runtime executable name or path.
	Binary string

	// ConfigFile overrides config discovery. When set, the file must
	// exist and parse; when empty, the XDG default locations are
	// probed and a missing config is not an error.
	ConfigFile string

	// DataRoot overrides storage discovery entirely.
	DataRoot string

	// Version pins the runtime version, skipping the binary probe.
	Version string

	// Logger is used for structured logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Runtime describes a discovered agent runtime installation.
type Runtime struct {
	// Binary is the executable name or path discovery ran against.
	Binary string

	// ConfigPath is the runtime config file that was read. Empty when
	// no config file exists.
	ConfigPath string

	// Config is the parsed runtime configuration. Nil when no config
	// file exists.
	Config *Config

	// DataRoot is the session storage root (the directory holding
	// project/, session/, message/, part/, todo/ or the embedded
	// database).
	DataRoot string

	// Version is the installed runtime version. Empty when the binary
	// could not be probed; backend detection then falls back to a
	// database-file probe.
	Version string
}

// Discover locates the agent runtime's config, storage root, and
// version. Resolution order for the storage root: explicit option,
// then the data_dir field of the runtime's own config, then the XDG
// default. A missing config file or a failed version probe degrades
// to the next fallback rather than failing the run.
func Discover(ctx context.Context, options Options) (*Runtime, error) {
	if options.Binary == "" {
		return nil, fmt.Errorf("agentconfig: no runtime binary configured")
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runtime := &Runtime{Binary: options.Binary}

	configPath := options.ConfigFile
	if configPath == "" {
		configPath = DefaultConfigPath(options.Binary)
	}
	if configPath != "" {
		config, err := ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		runtime.ConfigPath = configPath
		runtime.Config = config
	}

	runtime.DataRoot = options.DataRoot
	if runtime.DataRoot == "" && runtime.Config != nil && runtime.Config.DataDir != "" {
		runtime.DataRoot = ExpandHome(runtime.Config.DataDir)
	}
	if runtime.DataRoot == "" {
		runtime.DataRoot = DefaultDataRoot(options.Binary)
	}

	runtime.Version = options.Version
	if runtime.Version == "" {
		version, err := ProbeVersion(ctx, options.Binary)
		if err != nil {
			logger.Debug("version probe failed, backend detection will probe the database file",
				"binary", options.Binary,
				"error", err,
			)
		} else {
			runtime.Version = version
		}
	}

	logger.Debug("agent runtime discovered",
		"binary", runtime.Binary,
		"config", runtime.ConfigPath,
		"data_root", runtime.DataRoot,
		"version", runtime.Version,
	)
	return runtime, nil
}

// DefaultConfigPath returns the runtime's config file under the XDG
// config home, or empty if none exists. Probes config.jsonc first,
// then config.json.
func DefaultConfigPath(binary string) string {
	name := filepath.Base(binary)
	for _, candidate := range []string{"config.jsonc", "config.json"} {
		path := filepath.Join(configHome(), name, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// DefaultDataRoot returns the runtime's session storage root under
// the XDG data home.
func DefaultDataRoot(binary string) string {
	return filepath.Join(dataHome(), filepath.Base(binary), "storage")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
// Returns the path unchanged when it has no tilde prefix or the home
// directory cannot be determined.
func ExpandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if len(path) >= 2 && path[0] == '~' && path[1] == '/' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config"
	}
	return filepath.Join(home, ".config")
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".local/share"
	}
	return filepath.Join(home, ".local", "share")
}
