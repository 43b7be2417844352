// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/keepsake-ci/keepsake/lib/prompt"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

const (
	// contextSessionLimit caps how many prior-session overviews the
	// prompt carries.
	contextSessionLimit = 5

	// contextExcerptLimit caps the total search excerpts across all
	// terms.
	contextExcerptLimit = 8

	// contextTermLimit caps how many search terms are derived from
	// the trigger text.
	contextTermLimit = 5

	// minTermLength drops words too short to be selective as
	// substring queries.
	minTermLength = 4
)

// stopwords are common words with no search signal. The store search
// is a plain substring scan, so a term like "with" would match nearly
// every session and waste the excerpt budget.
var stopwords = map[string]bool{
	"about": true, "after": true, "been": true, "before": true,
	"could": true, "does": true, "from": true, "have": true,
	"here": true, "into": true, "just": true, "like": true,
	"more": true, "only": true, "over": true, "please": true,
	"should": true, "some": true, "than": true, "that": true,
	"them": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "week": true,
	"what": true, "when": true, "which": true, "will": true,
	"with": true, "would": true, "your": true,
}

// buildRunContext assembles the prompt payload: the normalized
// trigger, overviews of recent prior sessions, and search excerpts
// for terms drawn from the trigger text. A store read failure
// degrades to an emptier prompt rather than failing the run.
func buildRunContext(ctx context.Context, store sessionstore.Store, logger *slog.Logger, event *RunEvent, directory, mention string) prompt.RunData {
	instruction := StripMention(event.Instruction, mention)
	data := prompt.RunData{
		Repo:        event.Repo,
		EventKind:   string(event.Kind),
		Ref:         event.Ref,
		Number:      event.Number,
		Title:       event.Title,
		Body:        event.Body,
		Actor:       event.Actor,
		Instruction: instruction,
	}

	overviews, err := sessionstore.ListSessions(ctx, store, directory, sessionstore.ListOptions{
		Limit: contextSessionLimit,
	})
	if err != nil {
		logger.Warn("listing prior sessions for prompt context", "error", err)
	}
	for _, overview := range overviews {
		data.Sessions = append(data.Sessions, prompt.SessionOverview{
			ID:       overview.ID,
			Title:    overview.Title,
			Updated:  time.UnixMilli(overview.Updated).UTC(),
			Agents:   overview.Agents,
			Messages: overview.MessageCount,
		})
	}

	data.Excerpts = gatherExcerpts(ctx, store, logger, directory, searchTerms(event.Title, instruction))
	return data
}

// gatherExcerpts runs one capped search per term and merges the hits.
// The search itself returns at most one match per part, and parts
// already excerpted for an earlier term are skipped, so the result
// never exceeds contextExcerptLimit.
func gatherExcerpts(ctx context.Context, store sessionstore.Store, logger *slog.Logger, directory string, terms []string) []prompt.Excerpt {
	var excerpts []prompt.Excerpt
	seen := make(map[string]bool)

	for _, term := range terms {
		remaining := contextExcerptLimit - len(excerpts)
		if remaining <= 0 {
			break
		}
		results, err := sessionstore.SearchSessions(ctx, store, term, directory, sessionstore.SearchOptions{
			Limit: remaining,
		})
		if err != nil {
			logger.Warn("searching prior sessions", "term", term, "error", err)
			continue
		}
		for _, result := range results {
			for _, match := range result.Matches {
				if seen[match.PartID] {
					continue
				}
				seen[match.PartID] = true
				excerpts = append(excerpts, prompt.Excerpt{
					SessionID: result.SessionID,
					Role:      string(match.Role),
					Agent:     match.Agent,
					Text:      match.Excerpt,
				})
			}
		}
	}
	return excerpts
}

// searchTerms derives substring-search terms from the trigger: words
// from the title and instruction long enough to be selective, in
// first-appearance order, capped at contextTermLimit. Identifier
// characters stay inside a word so "lib/harness" or "TestScheduler"
// survive as terms.
func searchTerms(title, instruction string) []string {
	seen := make(map[string]bool)
	var terms []string

	for _, source := range []string{title, instruction} {
		for _, word := range strings.FieldsFunc(source, isWordBoundary) {
			word = strings.Trim(strings.ToLower(word), "._-/")
			if utf8.RuneCountInString(word) < minTermLength || stopwords[word] {
				continue
			}
			if seen[word] {
				continue
			}
			seen[word] = true
			terms = append(terms, word)
			if len(terms) == contextTermLimit {
				return terms
			}
		}
	}
	return terms
}

func isWordBoundary(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return false
	}
	switch r {
	case '_', '.', '-', '/':
		return false
	}
	return true
}
