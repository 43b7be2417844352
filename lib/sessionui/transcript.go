// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// transcriptHeaderLines is the fixed header height above the
// scrollable body: title, metadata, separator rule.
const transcriptHeaderLines = 3

// toolOutputMaxLines caps how much of a tool call's output the
// transcript shows inline. Tool output is frequently thousands of
// lines of build logs; the transcript is for reading the
// conversation, not replaying the terminal.
const toolOutputMaxLines = 20

// TranscriptPane is the right pane: a fixed session header above a
// scrollable rendered transcript.
type TranscriptPane struct {
	viewport viewport.Model
	theme    Theme
	width    int
	height   int

	// Retained for re-rendering on resize.
	hasSession bool
	overview   sessionstore.SessionOverview
	transcript *Transcript

	header    string
	loading   bool
	loadError string
}

// NewTranscriptPane creates an empty transcript pane.
func NewTranscriptPane(theme Theme) TranscriptPane {
	return TranscriptPane{theme: theme}
}

func (pane TranscriptPane) bodyHeight() int {
	result := pane.height - transcriptHeaderLines
	if result < 1 {
		result = 1
	}
	return result
}

// contentWidth is the usable text width: total minus the left padding
// column and the right scrollbar column.
func (pane TranscriptPane) contentWidth() int {
	return pane.width - 2
}

// SetSize updates the pane dimensions. A width change re-renders the
// body so markdown wrapping tracks the splitter.
func (pane *TranscriptPane) SetSize(width, height int) {
	previousWidth := pane.width
	pane.width = width
	pane.height = height
	pane.viewport.Width = pane.contentWidth()
	pane.viewport.Height = pane.bodyHeight()

	if pane.hasSession && width != previousWidth {
		pane.rerender()
	}
}

// SetLoading shows the session header with a loading placeholder
// while the transcript fetch is in flight.
func (pane *TranscriptPane) SetLoading(overview sessionstore.SessionOverview) {
	pane.hasSession = true
	pane.overview = overview
	pane.transcript = nil
	pane.loading = true
	pane.loadError = ""
	pane.rerender()
}

// SetTranscript renders a loaded transcript into the pane and scrolls
// to the top.
func (pane *TranscriptPane) SetTranscript(overview sessionstore.SessionOverview, transcript *Transcript) {
	pane.hasSession = true
	pane.overview = overview
	pane.transcript = transcript
	pane.loading = false
	pane.loadError = ""
	pane.rerender()
	pane.viewport.GotoTop()
}

// SetError shows a transcript load failure in place of the body.
func (pane *TranscriptPane) SetError(overview sessionstore.SessionOverview, message string) {
	pane.hasSession = true
	pane.overview = overview
	pane.transcript = nil
	pane.loading = false
	pane.loadError = message
	pane.rerender()
}

// Clear empties the pane (no session selected).
func (pane *TranscriptPane) Clear() {
	*pane = TranscriptPane{theme: pane.theme, width: pane.width, height: pane.height}
	pane.viewport.Width = pane.contentWidth()
	pane.viewport.Height = pane.bodyHeight()
	pane.viewport.SetContent("")
}

// rerender rebuilds the header and body at the current width,
// preserving the scroll offset where possible.
func (pane *TranscriptPane) rerender() {
	previousOffset := pane.viewport.YOffset

	pane.header = pane.renderHeader()

	var body string
	switch {
	case pane.loading:
		body = pane.faintStyle().Render("Loading transcript...")
	case pane.loadError != "":
		body = lipgloss.NewStyle().Foreground(pane.theme.ToolError).Render("Error: " + pane.loadError)
	case pane.transcript != nil:
		body = pane.renderBody()
	}

	// Constrain so no line exceeds the viewport width; markdown is
	// wrapped already but verbatim tool output can carry long lines.
	contentWidth := pane.contentWidth()
	if contentWidth > 0 && body != "" {
		body = lipgloss.NewStyle().Width(contentWidth).Render(body)
	}
	pane.viewport.SetContent(body)

	maxOffset := pane.viewport.TotalLineCount() - pane.viewport.Height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if previousOffset > maxOffset {
		previousOffset = maxOffset
	}
	pane.viewport.SetYOffset(previousOffset)
}

func (pane TranscriptPane) faintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(pane.theme.FaintText)
}

// renderHeader renders the fixed lines above the body: bold title,
// faint metadata, separator rule.
func (pane TranscriptPane) renderHeader() string {
	width := pane.contentWidth()
	if width < 1 {
		width = 1
	}

	title := pane.overview.Title
	if title == "" {
		title = pane.overview.ID
	}
	titleLine := lipgloss.NewStyle().
		Bold(true).
		Foreground(pane.theme.HeaderForeground).
		Width(width).
		Render(ansi.Truncate(" "+title, width, "…"))

	meta := fmt.Sprintf(" %s · %d messages · updated %s",
		pane.overview.ID,
		pane.overview.MessageCount,
		formatTimestamp(pane.overview.Updated, time.Now()))
	if pane.overview.Directory != "" {
		meta += " · " + pane.overview.Directory
	}
	metaLine := pane.faintStyle().Width(width).Render(ansi.Truncate(meta, width, "…"))

	rule := lipgloss.NewStyle().
		Foreground(pane.theme.BorderColor).
		Render(strings.Repeat("─", width))

	return titleLine + "\n" + metaLine + "\n" + rule
}

// renderBody renders every conversation turn: a role header line,
// then the turn's sections in part order.
func (pane TranscriptPane) renderBody() string {
	width := pane.contentWidth()
	var blocks []string

	for _, message := range pane.transcript.Messages {
		blocks = append(blocks, pane.renderTurnHeader(message))

		for _, section := range message.Sections {
			switch section.Kind {
			case SectionText:
				blocks = append(blocks, renderMarkdown(section.Body, pane.theme, width))
			case SectionReasoning:
				label := pane.faintStyle().Italic(true).Render("∴ reasoning")
				blocks = append(blocks, label+"\n"+renderMarkdown(section.Body, pane.theme, width))
			case SectionTool:
				blocks = append(blocks, pane.renderToolSection(section))
			}
		}
	}

	return strings.Join(blocks, "\n\n")
}

// renderTurnHeader renders one message's header line, colored by
// role: "● assistant @keepsake · anthropic/claude-sonnet · 14:02 apr 2".
func (pane TranscriptPane) renderTurnHeader(message TranscriptMessage) string {
	roleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(pane.theme.RoleColor(message.Role))
	header := roleStyle.Render("● " + string(message.Role))

	var details []string
	if message.Agent != "" {
		details = append(details, "@"+message.Agent)
	}
	if message.Model != "" {
		details = append(details, message.Model)
	}
	if message.Created > 0 {
		details = append(details, formatTimestamp(message.Created, time.Now()))
	}
	if message.Tokens != nil {
		details = append(details, fmt.Sprintf("%d in / %d out", message.Tokens.Input, message.Tokens.Output))
	}
	if len(details) > 0 {
		header += pane.faintStyle().Render(" " + strings.Join(details, " · "))
	}
	return header
}

// renderToolSection renders a tool call: a status-colored title line,
// then the output indented and capped at [toolOutputMaxLines].
func (pane TranscriptPane) renderToolSection(section TranscriptSection) string {
	titleStyle := lipgloss.NewStyle().Foreground(pane.theme.ToolStatusColor(section.Status))
	rendered := titleStyle.Render("▸ " + section.Title)

	if section.Body == "" {
		return rendered
	}

	lines := strings.Split(strings.TrimRight(section.Body, "\n"), "\n")
	hidden := 0
	if len(lines) > toolOutputMaxLines {
		hidden = len(lines) - toolOutputMaxLines
		lines = lines[:toolOutputMaxLines]
	}

	faint := pane.faintStyle()
	for _, line := range lines {
		rendered += "\n  " + faint.Render(line)
	}
	if hidden > 0 {
		rendered += "\n  " + faint.Italic(true).Render(fmt.Sprintf("… %d more lines", hidden))
	}
	return rendered
}

// View renders the pane: header, then the viewport body with a left
// padding column and a right scrollbar.
func (pane TranscriptPane) View(focused bool) string {
	if pane.width <= 0 || pane.height <= 0 {
		return ""
	}

	if !pane.hasSession {
		empty := pane.faintStyle().
			Width(pane.width).
			Height(pane.height).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No session selected")
		return empty
	}

	bodyHeight := pane.bodyHeight()
	padding := lipgloss.NewStyle().Width(1).Height(bodyHeight).Render("")
	body := lipgloss.NewStyle().
		Width(pane.contentWidth()).
		Height(bodyHeight).
		MaxWidth(pane.contentWidth()).
		Render(pane.viewport.View())

	scrollbar := renderScrollbar(
		pane.theme, bodyHeight,
		pane.viewport.TotalLineCount(), pane.viewport.Height, pane.viewport.YOffset,
		focused,
	)

	content := lipgloss.JoinHorizontal(lipgloss.Top, padding, body, scrollbar)
	return pane.header + "\n" + content
}

// ScrollUp moves the body up by n lines.
func (pane *TranscriptPane) ScrollUp(n int) { pane.viewport.LineUp(n) }

// ScrollDown moves the body down by n lines.
func (pane *TranscriptPane) ScrollDown(n int) { pane.viewport.LineDown(n) }

// HalfPageUp scrolls up half a screen.
func (pane *TranscriptPane) HalfPageUp() { pane.viewport.HalfViewUp() }

// HalfPageDown scrolls down half a screen.
func (pane *TranscriptPane) HalfPageDown() { pane.viewport.HalfViewDown() }

// GotoTop jumps to the start of the transcript.
func (pane *TranscriptPane) GotoTop() { pane.viewport.GotoTop() }

// GotoBottom jumps to the end of the transcript.
func (pane *TranscriptPane) GotoBottom() { pane.viewport.GotoBottom() }

// formatTimestamp renders a unix-millisecond instant compactly: time
// of day for today, month and day otherwise, with the year added once
// it differs.
func formatTimestamp(unixMillis int64, now time.Time) string {
	if unixMillis <= 0 {
		return ""
	}
	instant := time.UnixMilli(unixMillis)
	switch {
	case instant.Year() != now.Year():
		return instant.Format("Jan 2 2006")
	case instant.YearDay() != now.YearDay():
		return instant.Format("15:04 Jan 2")
	default:
		return instant.Format("15:04")
	}
}
