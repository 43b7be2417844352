// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package agentconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Config is the subset of the agent runtime's own configuration that
// the harness reads. The runtime accepts many more fields; unknown
// keys are ignored.
type Config struct {
	// DataDir overrides the XDG default storage location. Supports a
	// leading "~/".
	DataDir string `json:"data_dir"`

	// Model is the runtime's default model identifier.
	Model string `json:"model"`

	// Instructions are extra instruction files the runtime loads into
	// every session.
	Instructions []string `json:"instructions"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result. The input format is the runtime's own config
// syntax: JSON extended with // line comments, /* block comments */,
// and trailing commas.
func Parse(data []byte) (*Config, error) {
	stripped := jsonc.ToJSON(data)

	var config Config
	if err := json.Unmarshal(stripped, &config); err != nil {
		return nil, fmt.Errorf("parsing runtime config: %w", err)
	}

	return &config, nil
}

// ReadFile reads a JSONC runtime config file from disk and parses it.
func ReadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return config, nil
}
