// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keepsake.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_root: /var/agent/storage
retention:
  max_sessions: 5
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Storage.DataRoot != "/var/agent/storage" {
		t.Errorf("DataRoot = %q, want /var/agent/storage", cfg.Storage.DataRoot)
	}
	if cfg.Retention.MaxSessions != 5 {
		t.Errorf("MaxSessions = %d, want 5", cfg.Retention.MaxSessions)
	}
	// Untouched fields keep their defaults.
	if cfg.Retention.MaxAgeDays != 30 {
		t.Errorf("MaxAgeDays = %d, want default 30", cfg.Retention.MaxAgeDays)
	}
	if !cfg.Retention.Enabled {
		t.Error("Retention.Enabled lost its default")
	}
	if cfg.GitHub.BaseURL != "https://api.github.com" {
		t.Errorf("BaseURL = %q, want default", cfg.GitHub.BaseURL)
	}
}

func TestEnvironmentOverridesApply(t *testing.T) {
	path := writeConfig(t, `
environment: ci
storage:
  data_root: /home/dev/storage
ci:
  storage:
    data_root: /runner/storage
  retention:
    enabled: true
    max_sessions: 3
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Storage.DataRoot != "/runner/storage" {
		t.Errorf("DataRoot = %q, want ci override /runner/storage", cfg.Storage.DataRoot)
	}
	if cfg.Retention.MaxSessions != 3 {
		t.Errorf("MaxSessions = %d, want ci override 3", cfg.Retention.MaxSessions)
	}
}

func TestInactiveEnvironmentSectionIgnored(t *testing.T) {
	path := writeConfig(t, `
environment: local
ci:
  storage:
    data_root: /runner/storage
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Storage.DataRoot != "" {
		t.Errorf("DataRoot = %q, want empty (ci section must not apply in local)", cfg.Storage.DataRoot)
	}
}

func TestVariableExpansion(t *testing.T) {
	t.Setenv("KEEPSAKE_TEST_ROOT", "/mnt/cache")
	path := writeConfig(t, `
storage:
  data_root: ${KEEPSAKE_TEST_ROOT}/agent
archive:
  path: ${DATA_ROOT}/../state.kpsk
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Storage.DataRoot != "/mnt/cache/agent" {
		t.Errorf("DataRoot = %q, want /mnt/cache/agent", cfg.Storage.DataRoot)
	}
	if cfg.Archive.Path != "/mnt/cache/agent/../state.kpsk" {
		t.Errorf("Archive.Path = %q, want DATA_ROOT expanded", cfg.Archive.Path)
	}
}

func TestVariableExpansionDefault(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_root: ${KEEPSAKE_UNSET_VAR:-/fallback/root}
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Storage.DataRoot != "/fallback/root" {
		t.Errorf("DataRoot = %q, want /fallback/root", cfg.Storage.DataRoot)
	}
}

func TestArchivePathDerived(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataRoot = "/runner/storage/"
	if got := cfg.ArchivePath(); got != "/runner/storage.kpsk" {
		t.Errorf("ArchivePath() = %q, want /runner/storage.kpsk", got)
	}

	cfg.Archive.Path = "/tmp/explicit.kpsk"
	if got := cfg.ArchivePath(); got != "/tmp/explicit.kpsk" {
		t.Errorf("ArchivePath() = %q, want explicit path", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Environment = "staging"
	cfg.Retention.MaxSessions = -1
	cfg.Archive.Compression = "brotli"
	cfg.GitHub.BaseURL = "http://api.github.com"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{"environment", "max_sessions", "compression", "https"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error missing %q: %v", want, err)
		}
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("KEEPSAKE_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded without KEEPSAKE_CONFIG")
	}
}
