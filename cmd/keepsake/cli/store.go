// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/keepsake-ci/keepsake/lib/agentconfig"
	"github.com/keepsake-ci/keepsake/lib/config"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// StoreConfig carries the flags every store-touching command shares
// and the resolution chain behind them: configuration file, agent
// data root, open session store. Commands embed it in their params
// struct; [BindFlags] binds its flags through [FlagBinder].
type StoreConfig struct {
	// ConfigFile is the --config override. Empty falls back to the
	// KEEPSAKE_CONFIG environment variable, then to built-in
	// defaults.
	ConfigFile string

	// DataRoot is the --data-root override. Empty falls back to the
	// configured storage.data_root, then to runtime discovery.
	DataRoot string
}

// AddFlags implements [FlagBinder].
func (s *StoreConfig) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&s.ConfigFile, "config", "", "path to keepsake.yaml (default: $KEEPSAKE_CONFIG)")
	flagSet.StringVar(&s.DataRoot, "data-root", "", "agent data root (overrides config and discovery)")
}

// Load resolves the harness configuration. An explicit --config path
// wins; otherwise KEEPSAKE_CONFIG is consulted; with neither, the
// built-in defaults apply, which is enough for every store-only
// command when --data-root is given.
func (s *StoreConfig) Load() (*config.Config, error) {
	if s.ConfigFile != "" {
		return config.LoadFile(s.ConfigFile)
	}
	if os.Getenv("KEEPSAKE_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// ResolveDataRoot returns the agent data root and, when discovery had
// to run, the probed runtime version. Resolution order: the
// --data-root flag, the configured storage.data_root, then runtime
// discovery through the configured binary. State save/restore use the
// root directly; everything else goes through [StoreConfig.OpenStore].
func (s *StoreConfig) ResolveDataRoot(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dataRoot, agentVersion string, err error) {
	dataRoot = s.DataRoot
	if dataRoot == "" {
		dataRoot = cfg.Storage.DataRoot
	}
	agentVersion = cfg.Storage.AgentVersion

	if dataRoot == "" {
		if cfg.Runtime.Binary == "" {
			return "", "", fmt.Errorf("no data root configured: set storage.data_root or pass --data-root, or set runtime.binary so it can be discovered")
		}
		discovered, err := agentconfig.Discover(ctx, agentconfig.Options{
			Binary:     cfg.Runtime.Binary,
			ConfigFile: cfg.Runtime.ConfigFile,
			Version:    agentVersion,
			Logger:     logger,
		})
		if err != nil {
			return "", "", err
		}
		dataRoot = discovered.DataRoot
		agentVersion = discovered.Version
	}
	return dataRoot, agentVersion, nil
}

// OpenStore resolves the data root and opens the session store over
// it. The caller owns the returned store and must Close it.
func (s *StoreConfig) OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sessionstore.Store, error) {
	dataRoot, agentVersion, err := s.ResolveDataRoot(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return sessionstore.Open(sessionstore.Config{
		DataRoot:     dataRoot,
		AgentVersion: agentVersion,
		Logger:       logger,
	})
}

// ResolveDirectory normalizes a --directory flag value: empty means
// the current working directory, and relative paths are made absolute
// so store lookups match the absolute directory the runtime records
// on its projects.
func ResolveDirectory(path string) (string, error) {
	if path == "" {
		directory, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolving working directory: %w", err)
		}
		return directory, nil
	}
	return filepath.Abs(path)
}
