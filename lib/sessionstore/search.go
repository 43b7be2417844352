// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

// DefaultSearchLimit is the global match budget when SearchOptions
// leaves Limit unset.
const DefaultSearchLimit = 20

// excerptRadius is how much context an excerpt keeps on each side of a
// match start.
const excerptRadius = 50

// SearchOptions tunes a session search.
type SearchOptions struct {
	// Limit is the global match budget across all sessions. Zero or
	// negative means DefaultSearchLimit.
	Limit int

	// CaseSensitive disables the default case folding.
	CaseSensitive bool

	// SessionID restricts the search to one session. The directory
	// is ignored and at most one result entry comes back.
	SessionID string
}

// SearchMatch is one part that contained the query.
type SearchMatch struct {
	MessageID string      `json:"messageID"`
	PartID    string      `json:"partID"`
	Excerpt   string      `json:"excerpt"`
	Role      MessageRole `json:"role"`
	Agent     string      `json:"agent,omitempty"`
}

// SessionSearchResult groups the matches found in one session.
type SessionSearchResult struct {
	SessionID string        `json:"sessionID"`
	Matches   []SearchMatch `json:"matches"`
}

// SearchSessions scans session content for a substring and returns
// excerpted matches, at most one per part. Sessions are visited in
// ListSessions order (most recently updated first), and the scan stops
// globally once the cumulative match count reaches the budget, so the
// cost of a search is bounded no matter how much history the store
// holds.
func SearchSessions(ctx context.Context, store Store, query, directory string, opts SearchOptions) ([]SessionSearchResult, error) {
	if query == "" {
		return nil, nil
	}
	budget := opts.Limit
	if budget <= 0 {
		budget = DefaultSearchLimit
	}
	needle := query
	if !opts.CaseSensitive {
		needle = strings.ToLower(query)
	}

	if opts.SessionID != "" {
		matches, err := searchSession(ctx, store, opts.SessionID, needle, opts.CaseSensitive, budget)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, nil
		}
		return []SessionSearchResult{{SessionID: opts.SessionID, Matches: matches}}, nil
	}

	overviews, err := ListSessions(ctx, store, directory, ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing sessions to search: %w", err)
	}

	var results []SessionSearchResult
	for _, overview := range overviews {
		if budget <= 0 {
			break
		}
		matches, err := searchSession(ctx, store, overview.ID, needle, opts.CaseSensitive, budget)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			continue
		}
		budget -= len(matches)
		results = append(results, SessionSearchResult{
			SessionID: overview.ID,
			Matches:   matches,
		})
	}
	return results, nil
}

// searchSession scans one session's parts for the needle, returning at
// most budget matches. The needle is already case-folded when the
// search is insensitive.
func searchSession(ctx context.Context, store Store, sessionID, needle string, caseSensitive bool, budget int) ([]SearchMatch, error) {
	messages, err := store.GetSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading messages for %s: %w", sessionID, err)
	}

	var matches []SearchMatch
	for _, message := range messages {
		parts, err := store.GetMessageParts(ctx, message.ID())
		if err != nil {
			return nil, fmt.Errorf("loading parts for %s: %w", message.ID(), err)
		}
		for _, part := range parts {
			text, ok := searchText(part)
			if !ok {
				continue
			}
			haystack := text
			if !caseSensitive {
				haystack = strings.ToLower(text)
			}
			index := strings.Index(haystack, needle)
			if index < 0 {
				continue
			}
			matches = append(matches, SearchMatch{
				MessageID: message.ID(),
				PartID:    part.ID(),
				Excerpt:   excerpt(text, index),
				Role:      message.Role,
				Agent:     message.Agent(),
			})
			if len(matches) >= budget {
				return matches, nil
			}
		}
	}
	return matches, nil
}

// searchText extracts the searchable text of a part. Tool parts are
// searchable only once completed, as "{tool}: {output}" with terminal
// escapes stripped. Step-finish markers and unfinished tool calls
// carry nothing searchable.
func searchText(part Part) (string, bool) {
	switch part.Type {
	case PartTypeText:
		return part.Text.Text, true
	case PartTypeReasoning:
		return part.Reasoning.Text, true
	case PartTypeTool:
		if part.Tool.State.Status != ToolStatusCompleted {
			return "", false
		}
		return part.Tool.Tool + ": " + ansi.Strip(part.Tool.State.Output), true
	case PartTypeStepFinish:
		return "", false
	}
	return "", false
}

// excerpt returns the window around a match start, clamped to the text
// bounds and wrapped in ellipses. The window is byte-based and snapped
// to rune boundaries; index comes from a fold of the text, whose byte
// offsets line up for the ASCII content session transcripts are made
// of, and the clamping covers the rest.
func excerpt(text string, index int) string {
	start := index - excerptRadius
	if start < 0 {
		start = 0
	}
	end := index + excerptRadius
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	for end > start && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	return "..." + text[start:end] + "..."
}
