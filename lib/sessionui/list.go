// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// columnWidthAge is the fixed width of the leading age column, sized
// for the longest relative form ("59m", "23h", "13d") plus the
// calendar fallback ("Jan 2").
const columnWidthAge = 6

// ListRenderer renders session rows at a fixed width.
type ListRenderer struct {
	theme Theme
	width int
}

// NewListRenderer creates a renderer for rows of the given width.
func NewListRenderer(theme Theme, width int) ListRenderer {
	return ListRenderer{theme: theme, width: width}
}

// RenderRow renders one session row: relative age, title, and the
// agent personas that touched the session. matchPositions contains
// rune indices in the title to highlight when a fuzzy filter is
// active.
func (renderer ListRenderer) RenderRow(overview sessionstore.SessionOverview, selected bool, now time.Time, matchPositions []int) string {
	title := overview.Title
	if title == "" {
		title = overview.ID
	}

	// Agent personas trail the title the way labels trail a subject
	// line.
	suffix := ""
	if len(overview.Agents) > 0 {
		suffix = "  @" + strings.Join(overview.Agents, " @")
	}

	// Truncate before styling so a long title never wraps the row.
	// The title wins over the agent suffix when space runs out.
	available := renderer.width - 1 - columnWidthAge
	if available < 10 {
		available = 10
	}
	if lipgloss.Width(title)+lipgloss.Width(suffix) > available {
		if lipgloss.Width(title) >= available {
			title = ansi.Truncate(title, available, "…")
			suffix = ""
		} else if budget := available - lipgloss.Width(title); budget > 1 {
			suffix = ansi.Truncate(suffix, budget, "…")
		} else {
			suffix = ""
		}
	}

	if selected {
		return renderer.renderSelectedRow(overview, title, suffix, now, matchPositions)
	}
	return renderer.renderNormalRow(overview, title, suffix, now, matchPositions)
}

func (renderer ListRenderer) renderNormalRow(overview sessionstore.SessionOverview, title, suffix string, now time.Time, matchPositions []int) string {
	ageStyle := lipgloss.NewStyle().
		Width(columnWidthAge).
		Foreground(renderer.theme.FaintText)
	titleStyle := lipgloss.NewStyle().Foreground(renderer.theme.NormalText)
	suffixStyle := lipgloss.NewStyle().Foreground(renderer.theme.FaintText)

	var titleRendered string
	if len(matchPositions) > 0 {
		highlightStyle := lipgloss.NewStyle().
			Foreground(renderer.theme.NormalText).
			Background(renderer.theme.SearchHighlightBackground)
		titleRendered = highlightTitle(title, matchPositions, titleStyle, highlightStyle)
	} else {
		titleRendered = titleStyle.Render(title)
	}

	row := " " +
		ageStyle.Render(relativeAge(overview.Updated, now)) +
		titleRendered +
		suffixStyle.Render(suffix)

	return lipgloss.NewStyle().Width(renderer.width).MaxWidth(renderer.width).Render(row)
}

func (renderer ListRenderer) renderSelectedRow(overview sessionstore.SessionOverview, title, suffix string, now time.Time, matchPositions []int) string {
	baseStyle := lipgloss.NewStyle().
		Background(renderer.theme.SelectedBackground).
		Foreground(renderer.theme.SelectedForeground)

	var titleRendered string
	if len(matchPositions) > 0 {
		// The selection background already tints the row, so a
		// second background would barely read. Bold plus underline
		// makes the matched characters pop instead.
		highlightStyle := baseStyle.Bold(true).Underline(true)
		titleRendered = highlightTitle(title, matchPositions, baseStyle, highlightStyle)
	} else {
		titleRendered = baseStyle.Render(title)
	}

	row := " " +
		baseStyle.Width(columnWidthAge).Render(relativeAge(overview.Updated, now)) +
		titleRendered +
		baseStyle.Render(suffix)

	return baseStyle.Width(renderer.width).MaxWidth(renderer.width).Render(row)
}

// highlightTitle renders a title with character-level highlighting at
// the given rune positions. Consecutive runs of same-style characters
// batch into a single Render call to keep the ANSI output compact.
func highlightTitle(title string, positions []int, baseStyle, highlightStyle lipgloss.Style) string {
	if len(positions) == 0 {
		return baseStyle.Render(title)
	}

	positionSet := make(map[int]bool, len(positions))
	for _, position := range positions {
		positionSet[position] = true
	}

	runes := []rune(title)
	var result strings.Builder
	runStart := 0
	isHighlighted := positionSet[0]

	for index := 1; index <= len(runes); index++ {
		currentHighlighted := index < len(runes) && positionSet[index]
		if currentHighlighted != isHighlighted || index == len(runes) {
			chunk := string(runes[runStart:index])
			if isHighlighted {
				result.WriteString(highlightStyle.Render(chunk))
			} else {
				result.WriteString(baseStyle.Render(chunk))
			}
			runStart = index
			isHighlighted = currentHighlighted
		}
	}

	return result.String()
}

// relativeAge formats how long ago a unix-millisecond instant was,
// compactly: "now", "5m", "3h", "2d", then "Jan 2" once it is more
// than two weeks out.
func relativeAge(unixMillis int64, now time.Time) string {
	if unixMillis <= 0 {
		return "-"
	}

	elapsed := now.Sub(time.UnixMilli(unixMillis))
	switch {
	case elapsed < time.Minute:
		return "now"
	case elapsed < time.Hour:
		return fmt.Sprintf("%dm", int(elapsed.Minutes()))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%dh", int(elapsed.Hours()))
	case elapsed < 14*24*time.Hour:
		return fmt.Sprintf("%dd", int(elapsed.Hours()/24))
	default:
		return time.UnixMilli(unixMillis).Format("Jan 2")
	}
}
