// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/keepsake-ci/keepsake/lib/config"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "keepsake.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestStoreConfig_Load_ExplicitFile(t *testing.T) {
	path := writeConfigFile(t, `
storage:
  data_root: /srv/agent-data
retention:
  max_sessions: 5
`)

	store := StoreConfig{ConfigFile: path}
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Storage.DataRoot != "/srv/agent-data" {
		t.Errorf("Storage.DataRoot = %q, want %q", cfg.Storage.DataRoot, "/srv/agent-data")
	}
	if cfg.Retention.MaxSessions != 5 {
		t.Errorf("Retention.MaxSessions = %d, want 5", cfg.Retention.MaxSessions)
	}
	// Fields the file does not mention keep their defaults.
	if !cfg.Retention.Enabled {
		t.Error("Retention.Enabled = false, want default true")
	}
	if cfg.GitHub.Mention != "keepsake" {
		t.Errorf("GitHub.Mention = %q, want default %q", cfg.GitHub.Mention, "keepsake")
	}
}

func TestStoreConfig_Load_EnvFallback(t *testing.T) {
	path := writeConfigFile(t, `
storage:
  data_root: /srv/from-env
`)
	t.Setenv("KEEPSAKE_CONFIG", path)

	var store StoreConfig
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataRoot != "/srv/from-env" {
		t.Errorf("Storage.DataRoot = %q, want %q", cfg.Storage.DataRoot, "/srv/from-env")
	}
}

func TestStoreConfig_Load_DefaultsWhenUnset(t *testing.T) {
	t.Setenv("KEEPSAKE_CONFIG", "")

	var store StoreConfig
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Retention.MaxSessions != 10 {
		t.Errorf("Retention.MaxSessions = %d, want default 10", cfg.Retention.MaxSessions)
	}
	if cfg.Archive.Compression != "auto" {
		t.Errorf("Archive.Compression = %q, want default %q", cfg.Archive.Compression, "auto")
	}
}

func TestStoreConfig_Load_ExplicitFileWinsOverEnv(t *testing.T) {
	flagPath := writeConfigFile(t, `
storage:
  data_root: /srv/from-flag
`)
	envPath := writeConfigFile(t, `
storage:
  data_root: /srv/from-env
`)
	t.Setenv("KEEPSAKE_CONFIG", envPath)

	store := StoreConfig{ConfigFile: flagPath}
	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.DataRoot != "/srv/from-flag" {
		t.Errorf("Storage.DataRoot = %q, want %q", cfg.Storage.DataRoot, "/srv/from-flag")
	}
}

func TestStoreConfig_ResolveDataRoot_FlagWins(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataRoot = "/srv/from-config"
	cfg.Storage.AgentVersion = "0.9.1"

	store := StoreConfig{DataRoot: "/srv/from-flag"}
	dataRoot, agentVersion, err := store.ResolveDataRoot(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("ResolveDataRoot: %v", err)
	}
	if dataRoot != "/srv/from-flag" {
		t.Errorf("dataRoot = %q, want %q", dataRoot, "/srv/from-flag")
	}
	if agentVersion != "0.9.1" {
		t.Errorf("agentVersion = %q, want %q", agentVersion, "0.9.1")
	}
}

func TestStoreConfig_ResolveDataRoot_ConfigFallback(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataRoot = "/srv/from-config"

	var store StoreConfig
	dataRoot, _, err := store.ResolveDataRoot(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("ResolveDataRoot: %v", err)
	}
	if dataRoot != "/srv/from-config" {
		t.Errorf("dataRoot = %q, want %q", dataRoot, "/srv/from-config")
	}
}

func TestStoreConfig_ResolveDataRoot_ErrorWhenUnconfigured(t *testing.T) {
	// No flag, no configured root, no runtime binary to discover with.
	var store StoreConfig
	_, _, err := store.ResolveDataRoot(context.Background(), config.Default(), discardLogger())
	if err == nil {
		t.Fatal("ResolveDataRoot = nil, want error")
	}
	if !strings.Contains(err.Error(), "no data root configured") {
		t.Errorf("error = %q, want 'no data root configured'", err.Error())
	}
	if !strings.Contains(err.Error(), "--data-root") {
		t.Errorf("error = %q, should name the --data-root flag", err.Error())
	}
}

func TestStoreConfig_OpenStore(t *testing.T) {
	// An empty directory with no embedded database selects the
	// flat-file backend, which needs no setup.
	store := StoreConfig{DataRoot: t.TempDir()}
	s, err := store.OpenStore(context.Background(), config.Default(), discardLogger())
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer s.Close()

	if s == nil {
		t.Fatal("OpenStore returned nil store")
	}
}

func TestResolveDirectory(t *testing.T) {
	t.Run("empty means working directory", func(t *testing.T) {
		got, err := ResolveDirectory("")
		if err != nil {
			t.Fatalf("ResolveDirectory: %v", err)
		}
		wd, err := os.Getwd()
		if err != nil {
			t.Fatalf("Getwd: %v", err)
		}
		if got != wd {
			t.Errorf("ResolveDirectory(\"\") = %q, want %q", got, wd)
		}
	})

	t.Run("relative made absolute", func(t *testing.T) {
		got, err := ResolveDirectory("sub/dir")
		if err != nil {
			t.Fatalf("ResolveDirectory: %v", err)
		}
		if !filepath.IsAbs(got) {
			t.Errorf("ResolveDirectory(\"sub/dir\") = %q, want absolute path", got)
		}
		if !strings.HasSuffix(got, filepath.Join("sub", "dir")) {
			t.Errorf("ResolveDirectory(\"sub/dir\") = %q, want suffix sub/dir", got)
		}
	})

	t.Run("absolute unchanged", func(t *testing.T) {
		got, err := ResolveDirectory("/work/repo")
		if err != nil {
			t.Fatalf("ResolveDirectory: %v", err)
		}
		if got != "/work/repo" {
			t.Errorf("ResolveDirectory(\"/work/repo\") = %q, want %q", got, "/work/repo")
		}
	})
}
