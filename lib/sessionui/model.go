// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// FocusRegion identifies which part of the UI receives keyboard input.
type FocusRegion int

const (
	// FocusList: keys navigate the session list.
	FocusList FocusRegion = iota
	// FocusTranscript: keys scroll the transcript pane.
	FocusTranscript
	// FocusFilter: keys edit the filter query.
	FocusFilter
)

// Splitter bounds. The list pane starts narrower than half the
// terminal because transcripts need the room.
const (
	splitRatioDefault = 0.38
	splitRatioMin     = 0.20
	splitRatioMax     = 0.70
	splitRatioStep    = 0.05
)

// sessionsLoadedMsg delivers the session list from the source.
type sessionsLoadedMsg struct {
	overviews []sessionstore.SessionOverview
	err       error
}

// transcriptLoadedMsg delivers one session's transcript. sessionID
// identifies which request this answers so stale loads (the user
// moved on) can be dropped.
type transcriptLoadedMsg struct {
	sessionID  string
	transcript *Transcript
	err        error
}

// Model is the top-level bubbletea model for the session browser.
type Model struct {
	source Source
	theme  Theme
	keys   KeyMap

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int
	ready  bool

	// Session list state. sessions is the unfiltered store order
	// (most recently updated first); items is what the list shows
	// after filtering.
	sessions     []sessionstore.SessionOverview
	items        []sessionstore.SessionOverview
	cursor       int
	scrollOffset int
	selectedID   string // Stable focus: track selection by session ID.
	listError    string

	// Filter match highlighting: session ID to matched rune
	// positions in the title. Nil when no filter is active.
	filterHighlights map[string][]int
	filter           FilterModel

	// Two-pane layout.
	focusRegion FocusRegion
	priorFocus  FocusRegion // Saved focus when entering filter mode.
	splitRatio  float64     // Fraction of width for the list pane.
	transcript  TranscriptPane
}

// NewModel creates a Model connected to the given session source. The
// session list loads asynchronously from Init.
func NewModel(source Source) Model {
	return Model{
		source:     source,
		theme:      DefaultTheme,
		keys:       DefaultKeyMap,
		splitRatio: splitRatioDefault,
		transcript: NewTranscriptPane(DefaultTheme),
	}
}

// Init implements tea.Model. Kicks off the initial session list load.
func (model Model) Init() tea.Cmd {
	return loadSessions(model.source)
}

// loadSessions returns a tea.Cmd that fetches the session list.
func loadSessions(source Source) tea.Cmd {
	return func() tea.Msg {
		overviews, err := source.Sessions(context.Background())
		return sessionsLoadedMsg{overviews: overviews, err: err}
	}
}

// loadTranscript returns a tea.Cmd that fetches one transcript.
func loadTranscript(source Source, sessionID string) tea.Cmd {
	return func() tea.Msg {
		transcript, err := source.Transcript(context.Background(), sessionID)
		return transcriptLoadedMsg{sessionID: sessionID, transcript: transcript, err: err}
	}
}

// Update implements tea.Model. Routes keyboard events based on the
// current focus region and handles layout changes.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		// When the filter is active, route all input to it first,
		// except Esc (clear) and Enter (confirm).
		if model.focusRegion == FocusFilter {
			return model.handleFilterKeys(message)
		}

		switch {
		case key.Matches(message, model.keys.Quit):
			return model, tea.Quit

		case key.Matches(message, model.keys.FocusToggle):
			if model.focusRegion == FocusList {
				model.focusRegion = FocusTranscript
			} else {
				model.focusRegion = FocusList
			}

		case key.Matches(message, model.keys.SplitGrow):
			model.splitRatio += splitRatioStep
			if model.splitRatio > splitRatioMax {
				model.splitRatio = splitRatioMax
			}
			model.updatePaneSizes()

		case key.Matches(message, model.keys.SplitShrink):
			model.splitRatio -= splitRatioStep
			if model.splitRatio < splitRatioMin {
				model.splitRatio = splitRatioMin
			}
			model.updatePaneSizes()

		case key.Matches(message, model.keys.FilterActivate):
			model.priorFocus = model.focusRegion
			model.focusRegion = FocusFilter
			model.filter.Active = true
			// Snap to the top so results appear from the beginning
			// as the user types.
			model.cursor = 0
			model.scrollOffset = 0

		case key.Matches(message, model.keys.FilterClear):
			if model.filter.Input != "" {
				model.filter.Clear()
				return model.applyFilter()
			}

		case key.Matches(message, model.keys.Refresh):
			return model, loadSessions(model.source)

		default:
			if model.focusRegion == FocusList {
				return model.handleListKeys(message)
			}
			model.handleTranscriptKeys(message)
		}

	case tea.MouseMsg:
		if cmd := model.handleMouse(message); cmd != nil {
			return model, cmd
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.updatePaneSizes()

	case sessionsLoadedMsg:
		if message.err != nil {
			model.listError = message.err.Error()
			return model, nil
		}
		model.listError = ""
		model.sessions = message.overviews
		return model.applyFilter()

	case transcriptLoadedMsg:
		// Drop stale answers: the user may have moved the selection
		// while this load was in flight.
		if message.sessionID != model.selectedID {
			return model, nil
		}
		overview, ok := model.selectedOverview()
		if !ok {
			return model, nil
		}
		if message.err != nil {
			model.transcript.SetError(overview, message.err.Error())
		} else {
			model.transcript.SetTranscript(overview, message.transcript)
		}
	}
	return model, nil
}

// handleFilterKeys processes input while the filter owns the
// keyboard.
func (model Model) handleFilterKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		// ctrl+c always quits; 'q' is a regular character here.
		if message.Type == tea.KeyCtrlC {
			return model, tea.Quit
		}
		model.filter.HandleRune('q')
		return model.applyFilter()

	case key.Matches(message, model.keys.FilterClear):
		// Esc: clear the text if there is any, exit filter mode
		// otherwise.
		if model.filter.Input != "" {
			model.filter.Clear()
			return model.applyFilter()
		}
		model.filter.Active = false
		model.focusRegion = model.priorFocus
		return model, nil

	case message.Type == tea.KeyEnter:
		// Confirm the filter and return focus to the list.
		model.filter.Active = false
		model.focusRegion = FocusList
		return model, nil

	case message.Type == tea.KeyBackspace:
		if model.filter.HandleBackspace() {
			return model.applyFilter()
		}
		return model, nil

	case message.Type == tea.KeyRunes || message.Type == tea.KeySpace:
		for _, r := range message.Runes {
			model.filter.HandleRune(r)
		}
		return model.applyFilter()
	}

	return model, nil
}

// handleListKeys processes navigation while the list has focus. A
// selection change starts the transcript load for the new session.
func (model Model) handleListKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	previousCursor := model.cursor

	switch {
	case key.Matches(message, model.keys.Up):
		if model.cursor > 0 {
			model.cursor--
		}

	case key.Matches(message, model.keys.Down):
		if model.cursor < len(model.items)-1 {
			model.cursor++
		}

	case key.Matches(message, model.keys.PageUp):
		model.cursor -= model.visibleHeight()
		if model.cursor < 0 {
			model.cursor = 0
		}

	case key.Matches(message, model.keys.PageDown):
		model.cursor += model.visibleHeight()
		if model.cursor >= len(model.items) {
			model.cursor = len(model.items) - 1
		}
		if model.cursor < 0 {
			model.cursor = 0
		}

	case key.Matches(message, model.keys.Home):
		model.cursor = 0

	case key.Matches(message, model.keys.End):
		if len(model.items) > 0 {
			model.cursor = len(model.items) - 1
		}
	}

	model.ensureCursorVisible()

	if model.cursor != previousCursor {
		return model, model.syncSelection()
	}
	return model, nil
}

// handleTranscriptKeys scrolls the transcript pane.
func (model *Model) handleTranscriptKeys(message tea.KeyMsg) {
	switch {
	case key.Matches(message, model.keys.Up):
		model.transcript.ScrollUp(1)
	case key.Matches(message, model.keys.Down):
		model.transcript.ScrollDown(1)
	case key.Matches(message, model.keys.PageUp):
		model.transcript.HalfPageUp()
	case key.Matches(message, model.keys.PageDown):
		model.transcript.HalfPageDown()
	case key.Matches(message, model.keys.Home):
		model.transcript.GotoTop()
	case key.Matches(message, model.keys.End):
		model.transcript.GotoBottom()
	}
}

// handleMouse routes scroll wheel events to the pane under the
// cursor. Clicks in the list select the clicked row.
func (model *Model) handleMouse(message tea.MouseMsg) tea.Cmd {
	listWidth := model.listWidth()
	inListPane := message.X <= listWidth

	contentStart := 1 // Header or filter bar occupies row 0.
	inContentArea := message.Y >= contentStart && message.Y < model.height-2

	switch message.Button {
	case tea.MouseButtonWheelUp:
		if !inContentArea {
			return nil
		}
		if inListPane {
			model.scrollList(-3)
		} else {
			model.transcript.ScrollUp(3)
		}

	case tea.MouseButtonWheelDown:
		if !inContentArea {
			return nil
		}
		if inListPane {
			model.scrollList(3)
		} else {
			model.transcript.ScrollDown(3)
		}

	case tea.MouseButtonLeft:
		if message.Action != tea.MouseActionPress || !inContentArea {
			return nil
		}
		if inListPane {
			index := model.scrollOffset + message.Y - contentStart
			if index >= 0 && index < len(model.items) && index != model.cursor {
				model.cursor = index
				model.ensureCursorVisible()
				return model.syncSelection()
			}
			model.focusRegion = FocusList
		} else {
			model.focusRegion = FocusTranscript
		}
	}
	return nil
}

// scrollList moves the list window without moving the cursor, then
// pulls the cursor back into view.
func (model *Model) scrollList(delta int) {
	model.scrollOffset += delta
	maxOffset := len(model.items) - model.visibleHeight()
	if maxOffset < 0 {
		maxOffset = 0
	}
	if model.scrollOffset > maxOffset {
		model.scrollOffset = maxOffset
	}
	if model.scrollOffset < 0 {
		model.scrollOffset = 0
	}
	// Keep the cursor inside the visible window.
	if model.cursor < model.scrollOffset {
		model.cursor = model.scrollOffset
	}
	if visible := model.visibleHeight(); visible > 0 && model.cursor >= model.scrollOffset+visible {
		model.cursor = model.scrollOffset + visible - 1
	}
	if model.cursor >= len(model.items) && len(model.items) > 0 {
		model.cursor = len(model.items) - 1
	}
}

// applyFilter re-derives the displayed items from the session list
// and the filter query, and re-syncs the selection. Returns the
// updated model plus any transcript load the new selection needs.
func (model Model) applyFilter() (tea.Model, tea.Cmd) {
	if model.filter.Input != "" {
		results := model.filter.ApplyFuzzy(model.sessions)
		model.items = make([]sessionstore.SessionOverview, len(results))
		model.filterHighlights = make(map[string][]int, len(results))
		for index, result := range results {
			model.items[index] = result.Overview
			if len(result.TitlePositions) > 0 {
				model.filterHighlights[result.Overview.ID] = result.TitlePositions
			}
		}
		// Snap to the top so the best-scored match is selected.
		model.cursor = 0
		model.scrollOffset = 0
	} else {
		model.items = model.sessions
		model.filterHighlights = nil
		model.restoreSelection()
	}

	model.ensureCursorVisible()
	return model, model.syncSelection()
}

// restoreSelection moves the cursor back to the session identified by
// selectedID, falling back to the top when it is gone.
func (model *Model) restoreSelection() {
	if model.selectedID == "" {
		model.cursor = 0
		return
	}
	for index, overview := range model.items {
		if overview.ID == model.selectedID {
			model.cursor = index
			return
		}
	}
	model.cursor = 0
	model.scrollOffset = 0
}

// syncSelection aligns the transcript pane with the session under
// the cursor. Returns the load command when the selection actually
// changed, nil when the pane is already current.
func (model *Model) syncSelection() tea.Cmd {
	overview, ok := model.selectedOverview()
	if !ok {
		model.selectedID = ""
		model.transcript.Clear()
		return nil
	}
	if overview.ID == model.selectedID {
		return nil
	}
	model.selectedID = overview.ID
	model.transcript.SetLoading(overview)
	return loadTranscript(model.source, overview.ID)
}

// selectedOverview returns the session under the cursor.
func (model Model) selectedOverview() (sessionstore.SessionOverview, bool) {
	if model.cursor < 0 || model.cursor >= len(model.items) {
		return sessionstore.SessionOverview{}, false
	}
	return model.items[model.cursor], true
}

// updatePaneSizes recalculates pane dimensions after a resize or
// split ratio change.
func (model *Model) updatePaneSizes() {
	// 1 column for the vertical divider between panes.
	transcriptWidth := model.width - model.listWidth() - 1
	if transcriptWidth < 10 {
		transcriptWidth = 10
	}
	model.transcript.SetSize(transcriptWidth, model.visibleHeight())
}

// listWidth returns the width of the list pane in columns.
func (model Model) listWidth() int {
	return int(float64(model.width) * model.splitRatio)
}

// visibleHeight returns the number of list rows that fit between the
// chrome: one header (or filter bar) line above, separator and help
// bar below.
func (model Model) visibleHeight() int {
	return model.height - 3
}

// ensureCursorVisible adjusts scrollOffset so the cursor is within
// the visible window.
func (model *Model) ensureCursorVisible() {
	visible := model.visibleHeight()
	if visible <= 0 {
		return
	}

	maxOffset := len(model.items) - visible
	if maxOffset < 0 {
		maxOffset = 0
	}
	if model.scrollOffset > maxOffset {
		model.scrollOffset = maxOffset
	}

	if model.cursor < model.scrollOffset {
		model.scrollOffset = model.cursor
	}
	if model.cursor >= model.scrollOffset+visible {
		model.scrollOffset = model.cursor - visible + 1
	}
	if model.scrollOffset < 0 {
		model.scrollOffset = 0
	}
}

// View implements tea.Model. Renders the full frame with two panes.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}

	var sections []string

	// Top chrome line: the filter bar replaces the header while
	// filtering so the layout doesn't shift.
	if filterView := model.filter.View(model.theme, model.width); filterView != "" {
		sections = append(sections, filterView)
	} else {
		sections = append(sections, model.renderHeader())
	}

	listView := model.renderListPane()
	divider := model.renderDivider()
	transcriptView := model.transcript.View(model.focusRegion == FocusTranscript)
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, listView, divider, transcriptView))

	separator := lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Render(strings.Repeat("─", model.width))
	sections = append(sections, separator)

	sections = append(sections, model.renderHelp())

	return strings.Join(sections, "\n")
}

// renderHeader renders the top chrome line: program name and session
// count, plus the load error when the last refresh failed.
func (model Model) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(model.theme.HeaderForeground).
		Render(" keepsake sessions")

	count := lipgloss.NewStyle().
		Foreground(model.theme.FaintText).
		Render(fmt.Sprintf("  %d sessions", len(model.sessions)))

	line := title + count
	if model.listError != "" {
		errorStyle := lipgloss.NewStyle().Foreground(model.theme.ToolError).Bold(true)
		line += errorStyle.Render("  Error: " + model.listError)
	}

	return lipgloss.NewStyle().Width(model.width).Render(ansi.Truncate(line, model.width, "…"))
}

// renderListPane renders the visible window of session rows plus the
// right scrollbar.
func (model Model) renderListPane() string {
	// Reserve 1 column for the scrollbar so rows keep a fixed width.
	rowWidth := model.listWidth() - 1
	renderer := NewListRenderer(model.theme, rowWidth)

	visible := model.visibleHeight()
	if visible < 0 {
		visible = 0
	}

	now := time.Now()
	var rows []string
	for index := model.scrollOffset; index < model.scrollOffset+visible && index < len(model.items); index++ {
		overview := model.items[index]
		rows = append(rows, renderer.RenderRow(
			overview,
			index == model.cursor,
			now,
			model.filterHighlights[overview.ID],
		))
	}

	if len(rows) == 0 {
		emptyText := "No sessions recorded"
		if model.filter.Input != "" {
			emptyText = "No sessions match the filter"
		}
		rows = append(rows, lipgloss.NewStyle().
			Foreground(model.theme.FaintText).
			Width(rowWidth).
			Render(" "+emptyText))
	}

	for padding := len(rows); padding < visible; padding++ {
		rows = append(rows, lipgloss.NewStyle().Width(rowWidth).Render(""))
	}

	scrollbar := renderScrollbar(
		model.theme, visible,
		len(model.items), visible, model.scrollOffset,
		model.focusRegion == FocusList,
	)

	content := lipgloss.NewStyle().
		Width(rowWidth).
		Height(visible).
		Render(strings.Join(rows, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, content, scrollbar)
}

// renderDivider renders the vertical line between the panes.
func (model Model) renderDivider() string {
	visible := model.visibleHeight()
	if visible < 0 {
		visible = 0
	}

	lines := make([]string, visible)
	for index := range lines {
		lines[index] = "│"
	}

	return lipgloss.NewStyle().
		Foreground(model.theme.BorderColor).
		Width(1).
		Height(visible).
		Render(strings.Join(lines, "\n"))
}

// renderHelp renders the bottom help bar with the focus indicator and
// list position.
func (model Model) renderHelp() string {
	style := lipgloss.NewStyle().Foreground(model.theme.HelpText)

	focusIndicator := "LIST"
	switch model.focusRegion {
	case FocusTranscript:
		focusIndicator = "TRANSCRIPT"
	case FocusFilter:
		focusIndicator = "FILTER"
	}

	help := fmt.Sprintf(" [%s] q quit  ↑↓ navigate  Tab focus  ]/[ resize  / filter  r reload",
		focusIndicator)

	if len(model.items) > 0 && model.cursor < len(model.items) {
		help += fmt.Sprintf("  %d/%d", model.cursor+1, len(model.items))
	}

	return style.Render(help)
}
