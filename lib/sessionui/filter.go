// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionui

import (
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// FilterModel holds the state of the session list filter: the query
// text and whether the input has keyboard focus (the user pressed /
// to start typing). Matching is fuzzy across title, session ID,
// directory, and agent names, so "plk" finds "pool leak" the way fzf
// would.
type FilterModel struct {
	// Input is the current filter query text.
	Input string

	// Active is true when the filter input has keyboard focus.
	Active bool
}

// FuzzyFilterResult pairs a session with its match score. Score is
// the best score across the searchable fields; TitlePositions holds
// matched rune indices in the title when the title itself matched,
// for character-level highlighting in the list.
type FuzzyFilterResult struct {
	Overview       sessionstore.SessionOverview
	Score          int
	TitlePositions []int
}

// ApplyFuzzy filters and ranks sessions against the current query.
// An empty query returns all sessions in their original order with
// zero scores. Otherwise only matching sessions are returned, best
// score first; ties keep the input order (most recently updated
// first, as the store lists them).
func (filter *FilterModel) ApplyFuzzy(overviews []sessionstore.SessionOverview) []FuzzyFilterResult {
	if filter.Input == "" {
		results := make([]FuzzyFilterResult, len(overviews))
		for index, overview := range overviews {
			results[index] = FuzzyFilterResult{Overview: overview}
		}
		return results
	}

	pattern := []rune(filter.Input)
	slab := newMatchSlab()

	var results []FuzzyFilterResult
	for _, overview := range overviews {
		titleMatch := fuzzyMatch(overview.Title, pattern, slab)

		best := titleMatch.Score
		for _, field := range []string{
			overview.ID,
			overview.Directory,
			strings.Join(overview.Agents, " "),
		} {
			if match := fuzzyMatch(field, pattern, slab); match.Score > best {
				best = match.Score
			}
		}
		if best <= 0 {
			continue
		}

		result := FuzzyFilterResult{Overview: overview, Score: best}
		if titleMatch.Score > 0 {
			result.TitlePositions = titleMatch.Positions
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// HandleRune processes a character typed while the filter is active.
// Returns true if the input changed.
func (filter *FilterModel) HandleRune(character rune) bool {
	filter.Input += string(character)
	return true
}

// HandleBackspace removes the last character from the filter input.
// Returns true if the input changed.
func (filter *FilterModel) HandleBackspace() bool {
	if len(filter.Input) == 0 {
		return false
	}
	runes := []rune(filter.Input)
	filter.Input = string(runes[:len(runes)-1])
	return true
}

// Clear resets the filter input and deactivates it.
func (filter *FilterModel) Clear() {
	filter.Input = ""
	filter.Active = false
}

// View renders the filter bar. When active, shows the input with a
// cursor. When inactive with text, shows the filter text. When
// inactive with no text, returns empty string (hidden).
func (filter *FilterModel) View(theme Theme, width int) string {
	if !filter.Active && filter.Input == "" {
		return ""
	}

	style := lipgloss.NewStyle().
		Foreground(theme.NormalText).
		Width(width)

	if filter.Active {
		cursor := lipgloss.NewStyle().
			Foreground(theme.HeaderForeground).
			Bold(true).
			Render("▎")
		return style.Render(" / " + filter.Input + cursor)
	}

	dimStyle := lipgloss.NewStyle().
		Foreground(theme.FaintText).
		Width(width)
	return dimStyle.Render(" filter: " + filter.Input)
}
