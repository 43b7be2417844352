// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// Theme defines the color palette for the session browser. All colors
// use lipgloss ANSI 256-color codes for broad terminal compatibility.
//
// The fields cover universal chrome (text, selection, borders) and the
// semantic categories of a transcript: message roles and tool-call
// statuses.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Message role colors, used for transcript turn headers.
	RoleUser      lipgloss.Color
	RoleAssistant lipgloss.Color

	// Tool-call status colors.
	ToolPending   lipgloss.Color
	ToolRunning   lipgloss.Color
	ToolCompleted lipgloss.Color
	ToolError     lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// ActiveAccent marks the focused pane's scrollbar thumb and other
	// "this is live" indicators.
	ActiveAccent lipgloss.Color

	// Search and filter match highlighting.
	SearchHighlightBackground lipgloss.Color
}

// RoleColor returns the color for a message role. Unknown roles
// return FaintText.
func (theme Theme) RoleColor(role sessionstore.MessageRole) lipgloss.Color {
	switch role {
	case sessionstore.RoleUser:
		return theme.RoleUser
	case sessionstore.RoleAssistant:
		return theme.RoleAssistant
	default:
		return theme.FaintText
	}
}

// ToolStatusColor returns the color for a tool-call status. Unknown
// statuses return FaintText.
func (theme Theme) ToolStatusColor(status sessionstore.ToolStatus) lipgloss.Color {
	switch status {
	case sessionstore.ToolStatusPending:
		return theme.ToolPending
	case sessionstore.ToolStatusRunning:
		return theme.ToolRunning
	case sessionstore.ToolStatusCompleted:
		return theme.ToolCompleted
	case sessionstore.ToolStatusError:
		return theme.ToolError
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background (the common case for
// development environments and tmux sessions).
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	RoleUser:      lipgloss.Color("75"),  // blue
	RoleAssistant: lipgloss.Color("114"), // green

	ToolPending:   lipgloss.Color("245"), // gray
	ToolRunning:   lipgloss.Color("220"), // yellow/amber
	ToolCompleted: lipgloss.Color("114"), // green
	ToolError:     lipgloss.Color("196"), // red

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	ActiveAccent: lipgloss.Color("220"), // amber, matches ToolRunning

	SearchHighlightBackground: lipgloss.Color("58"), // dark amber
}
