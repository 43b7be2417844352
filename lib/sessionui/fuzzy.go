// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionui

import (
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult is the outcome of matching a pattern against a text.
// Score is zero when the pattern did not match; Positions holds the
// rune indices of matched characters for highlighting.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// fuzzyMatch runs fzf's V2 matching algorithm against a single text.
// Matching is case-insensitive: the pattern is lowercased here and
// the algorithm folds the text. The slab is an optional scratch
// buffer; pass the same slab across calls in a loop to avoid
// per-call allocation, or nil for one-off matches.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 || text == "" {
		return FuzzyResult{}
	}

	lowered := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(text))
	result, positions := algo.FuzzyMatchV2(false, true, true, &chars, lowered, true, slab)
	if result.Score <= 0 {
		return FuzzyResult{}
	}

	match := FuzzyResult{Score: result.Score}
	if positions != nil {
		match.Positions = *positions
	}
	return match
}

// newMatchSlab allocates a scratch buffer sized for repeated
// fuzzyMatch calls over a session list. Sizes follow fzf's own
// defaults.
func newMatchSlab() *util.Slab {
	return util.MakeSlab(100*1024, 2048)
}
