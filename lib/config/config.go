// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the keepsake
// harness.
//
// Configuration is loaded from a single file specified by:
//   - KEEPSAKE_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures
// deterministic, auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (local, ci)
// that override base values when the environment matches. A run on a CI
// runner and a run on a developer machine share one file and diverge
// only in those sections.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment represents where the harness is running.
type Environment string

const (
	// Local is a developer machine: interactive commands, relaxed
	// sealing requirements.
	Local Environment = "local"
	// CI is an ephemeral CI runner: the full run lifecycle, archive
	// bracketing, report comments.
	CI Environment = "ci"
)

// Config is the master configuration for keepsake.
type Config struct {
	// Environment identifies where the harness runs (local, ci).
	Environment Environment `yaml:"environment"`

	// Storage configures the agent session store location.
	Storage StorageConfig `yaml:"storage"`

	// Retention configures the session pruning policy.
	Retention RetentionConfig `yaml:"retention"`

	// Search configures session search defaults.
	Search SearchConfig `yaml:"search"`

	// Archive configures state archive save/restore.
	Archive ArchiveConfig `yaml:"archive"`

	// GitHub configures API access and run-report comments.
	GitHub GitHubConfig `yaml:"github"`

	// Runtime configures the external agent runtime invocation.
	Runtime RuntimeConfig `yaml:"runtime"`

	// Prompts configures prompt template resolution.
	Prompts PromptsConfig `yaml:"prompts"`

	// Environment-specific overrides, applied after the base config.
	Local *ConfigOverrides `yaml:"local,omitempty"`
	CI    *ConfigOverrides `yaml:"ci,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Storage   *StorageConfig   `yaml:"storage,omitempty"`
	Retention *RetentionConfig `yaml:"retention,omitempty"`
	Archive   *ArchiveConfig   `yaml:"archive,omitempty"`
	GitHub    *GitHubConfig    `yaml:"github,omitempty"`
	Runtime   *RuntimeConfig   `yaml:"runtime,omitempty"`
}

// StorageConfig configures the agent session store.
type StorageConfig struct {
	// DataRoot is the agent runtime's storage root (the directory
	// holding project/, session/, message/, part/, todo/ or the
	// embedded database). Empty means discover it from the runtime's
	// own configuration.
	DataRoot string `yaml:"data_root"`

	// AgentVersion pins the agent runtime version for backend
	// detection. Empty means probe the installed binary, then fall
	// back to a database-file probe.
	AgentVersion string `yaml:"agent_version"`
}

// RetentionConfig configures the pruning policy.
type RetentionConfig struct {
	// Enabled controls whether the run lifecycle prunes at all.
	// Default: true.
	Enabled bool `yaml:"enabled"`

	// MaxSessions is the count-based floor: this many most-recently-
	// updated main sessions always survive. Default: 10.
	MaxSessions int `yaml:"max_sessions"`

	// MaxAgeDays is the age-based guarantee: main sessions updated
	// within this many days always survive. Default: 30.
	MaxAgeDays int `yaml:"max_age_days"`
}

// SearchConfig configures session search defaults.
type SearchConfig struct {
	// Limit is the global match budget per search. Default: 20.
	Limit int `yaml:"limit"`
}

// ArchiveConfig configures state archive save/restore.
type ArchiveConfig struct {
	// Path is the archive file location. Empty derives
	// "<data_root>.kpsk" next to the data root.
	Path string `yaml:"path"`

	// Compression selects the blob compression: auto, zstd, lz4, none.
	// Auto probes each blob and keeps whichever wins. Default: auto.
	Compression string `yaml:"compression"`

	// Recipients are age public keys (age1...) the archive is sealed
	// to. Empty means the archive is written unsealed.
	Recipients []string `yaml:"recipients"`

	// IdentityEnv names the environment variable holding the age
	// identity used to unseal on restore. Default:
	// KEEPSAKE_AGE_IDENTITY.
	IdentityEnv string `yaml:"identity_env"`
}

// GitHubConfig configures API access.
type GitHubConfig struct {
	// BaseURL is the API root. Default: https://api.github.com.
	// Must use HTTPS.
	BaseURL string `yaml:"base_url"`

	// TokenEnv names the environment variable holding the API token.
	// Default: GITHUB_TOKEN. The token itself never appears in the
	// config file.
	TokenEnv string `yaml:"token_env"`

	// Mention is the word that triggers a run when it appears as
	// "/<mention>" or "@<mention>" in a comment. Default: keepsake.
	Mention string `yaml:"mention"`
}

// RuntimeConfig configures the external agent runtime.
type RuntimeConfig struct {
	// Binary is the agent runtime executable name or path. Required
	// for `keepsake run`; store-only commands work without it.
	Binary string `yaml:"binary"`

	// Args are extra arguments appended to every invocation.
	Args []string `yaml:"args"`

	// Model is the model identifier passed to the runtime, when set.
	Model string `yaml:"model"`

	// ConfigFile is the runtime's own config path (JSONC). Empty
	// means the runtime's default XDG location.
	ConfigFile string `yaml:"config_file"`
}

// PromptsConfig configures prompt template resolution.
type PromptsConfig struct {
	// Dir overrides the embedded prompt templates with files from
	// this directory, matched by template name.
	Dir string `yaml:"dir"`
}

// Default returns the default configuration. These defaults are used
// as a base before loading the config file; every field has a usable
// zero-state so store-only commands run with no file at all.
func Default() *Config {
	return &Config{
		Environment: Local,
		Storage:     StorageConfig{},
		Retention: RetentionConfig{
			Enabled:     true,
			MaxSessions: 10,
			MaxAgeDays:  30,
		},
		Search: SearchConfig{
			Limit: 20,
		},
		Archive: ArchiveConfig{
			Compression: "auto",
			IdentityEnv: "KEEPSAKE_AGE_IDENTITY",
		},
		GitHub: GitHubConfig{
			BaseURL:  "https://api.github.com",
			TokenEnv: "GITHUB_TOKEN",
			Mention:  "keepsake",
		},
		Runtime: RuntimeConfig{},
		Prompts: PromptsConfig{},
	}
}

// Load loads configuration from the KEEPSAKE_CONFIG environment
// variable. There are no fallbacks: if KEEPSAKE_CONFIG is not set,
// this fails. Commands that can run on pure defaults call Default()
// instead.
func Load() (*Config, error) {
	configPath := os.Getenv("KEEPSAKE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("KEEPSAKE_CONFIG environment variable not set; " +
			"set it to the path of your keepsake.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables
// do not override config values; the only expansion performed is
// ${VAR} / ${VAR:-default} in path fields, for portability across
// runners.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// applyEnvironmentOverrides applies the section matching the active
// environment on top of the base values.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Local:
		overrides = c.Local
	case CI:
		overrides = c.CI
	}
	if overrides == nil {
		return
	}

	if overrides.Storage != nil {
		if overrides.Storage.DataRoot != "" {
			c.Storage.DataRoot = overrides.Storage.DataRoot
		}
		if overrides.Storage.AgentVersion != "" {
			c.Storage.AgentVersion = overrides.Storage.AgentVersion
		}
	}

	if overrides.Retention != nil {
		// Enabled is a bool, so it always applies from overrides.
		c.Retention.Enabled = overrides.Retention.Enabled
		if overrides.Retention.MaxSessions != 0 {
			c.Retention.MaxSessions = overrides.Retention.MaxSessions
		}
		if overrides.Retention.MaxAgeDays != 0 {
			c.Retention.MaxAgeDays = overrides.Retention.MaxAgeDays
		}
	}

	if overrides.Archive != nil {
		if overrides.Archive.Path != "" {
			c.Archive.Path = overrides.Archive.Path
		}
		if overrides.Archive.Compression != "" {
			c.Archive.Compression = overrides.Archive.Compression
		}
		if len(overrides.Archive.Recipients) > 0 {
			c.Archive.Recipients = overrides.Archive.Recipients
		}
		if overrides.Archive.IdentityEnv != "" {
			c.Archive.IdentityEnv = overrides.Archive.IdentityEnv
		}
	}

	if overrides.GitHub != nil {
		if overrides.GitHub.BaseURL != "" {
			c.GitHub.BaseURL = overrides.GitHub.BaseURL
		}
		if overrides.GitHub.TokenEnv != "" {
			c.GitHub.TokenEnv = overrides.GitHub.TokenEnv
		}
		if overrides.GitHub.Mention != "" {
			c.GitHub.Mention = overrides.GitHub.Mention
		}
	}

	if overrides.Runtime != nil {
		if overrides.Runtime.Binary != "" {
			c.Runtime.Binary = overrides.Runtime.Binary
		}
		if len(overrides.Runtime.Args) > 0 {
			c.Runtime.Args = overrides.Runtime.Args
		}
		if overrides.Runtime.Model != "" {
			c.Runtime.Model = overrides.Runtime.Model
		}
		if overrides.Runtime.ConfigFile != "" {
			c.Runtime.ConfigFile = overrides.Runtime.ConfigFile
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in path
// fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"DATA_ROOT": c.Storage.DataRoot,
		"HOME":      os.Getenv("HOME"),
	}

	c.Storage.DataRoot = expandVars(c.Storage.DataRoot, vars)
	vars["DATA_ROOT"] = c.Storage.DataRoot // Update for dependent paths.

	c.Archive.Path = expandVars(c.Archive.Path, vars)
	c.Runtime.ConfigFile = expandVars(c.Runtime.ConfigFile, vars)
	c.Prompts.Dir = expandVars(c.Prompts.Dir, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// DefaultArchivePath derives the archive location for a data root:
// "<data_root>.kpsk" next to the root itself.
func DefaultArchivePath(dataRoot string) string {
	return filepath.Clean(dataRoot) + ".kpsk"
}

// ArchivePath returns the effective archive file location: the
// configured path, or the default derived from the configured data
// root. Empty when neither is set; the run lifecycle then derives the
// path from the discovered data root instead.
func (c *Config) ArchivePath() string {
	if c.Archive.Path != "" {
		return c.Archive.Path
	}
	if c.Storage.DataRoot == "" {
		return ""
	}
	return DefaultArchivePath(c.Storage.DataRoot)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Local && c.Environment != CI {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Retention.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("retention.max_sessions must not be negative"))
	}
	if c.Retention.MaxAgeDays < 0 {
		errs = append(errs, fmt.Errorf("retention.max_age_days must not be negative"))
	}

	if c.Search.Limit <= 0 {
		errs = append(errs, fmt.Errorf("search.limit must be positive"))
	}

	compressionValues := []string{"auto", "zstd", "lz4", "none"}
	if !contains(compressionValues, c.Archive.Compression) {
		errs = append(errs, fmt.Errorf("archive.compression must be one of: %v", compressionValues))
	}

	if !strings.HasPrefix(c.GitHub.BaseURL, "https://") {
		errs = append(errs, fmt.Errorf("github.base_url must use https"))
	}
	if c.GitHub.Mention == "" {
		errs = append(errs, fmt.Errorf("github.mention is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
