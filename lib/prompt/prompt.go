// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompt assembles the text handed to the agent runtime and
// the run-report comment body. Templates are standard text/template,
// embedded at compile time; an override directory replaces any
// embedded template by name, so a repository can reshape its prompts
// without rebuilding the harness.
package prompt

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

// templateFuncs are available in all templates.
var templateFuncs = template.FuncMap{
	"join": strings.Join,
}

// Library is a parsed set of prompt templates.
type Library struct {
	templates *template.Template
}

// Load parses the embedded templates, then applies overrides from
// overrideDir (may be empty). An override file <dir>/<name>.tmpl
// replaces the embedded template of the same name; files that do not
// end in .tmpl are ignored.
func Load(overrideDir string) (*Library, error) {
	root := template.New("prompts").Funcs(templateFuncs)
	templates, err := root.ParseFS(templateFiles, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded prompt templates: %w", err)
	}

	if overrideDir != "" {
		entries, err := os.ReadDir(overrideDir)
		if err != nil {
			return nil, fmt.Errorf("reading prompt override directory %s: %w", overrideDir, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != ".tmpl" {
				continue
			}
			path := filepath.Join(overrideDir, entry.Name())
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading prompt override %s: %w", path, err)
			}
			// Parsing under an existing name replaces the embedded
			// definition.
			if _, err := templates.New(entry.Name()).Parse(string(content)); err != nil {
				return nil, fmt.Errorf("parsing prompt override %s: %w", path, err)
			}
		}
	}

	return &Library{templates: templates}, nil
}

// Render executes the named template. The name is the bare template
// name without the .tmpl extension ("run", "report").
func (library *Library) Render(name string, data any) (string, error) {
	var output strings.Builder
	if err := library.templates.ExecuteTemplate(&output, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("rendering prompt template %s: %w", name, err)
	}
	return output.String(), nil
}

// Names returns the available template names, without extensions.
func (library *Library) Names() []string {
	var names []string
	for _, tmpl := range library.templates.Templates() {
		name := tmpl.Name()
		if strings.HasSuffix(name, ".tmpl") {
			names = append(names, strings.TrimSuffix(name, ".tmpl"))
		}
	}
	return names
}
