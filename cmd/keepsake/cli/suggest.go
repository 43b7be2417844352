// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

// suggestionThreshold is the largest edit distance still considered a
// plausible typo: transpositions, dropped characters, extra
// characters. Anything further away is probably a different word.
const suggestionThreshold = 3

// suggestCommand returns the name of the closest matching subcommand
// to the unknown input, or "" if nothing is close enough.
func suggestCommand(unknown string, commands []*Command) string {
	bestName := ""
	bestDistance := suggestionThreshold + 1

	for _, command := range commands {
		distance := levenshtein(unknown, command.Name)
		if distance < bestDistance {
			bestDistance = distance
			bestName = command.Name
		}
	}

	return bestName
}

// suggestFlag looks at the args for the first unrecognized flag and
// returns the closest defined flag name, formatted with the
// appropriate prefix (-- or -). Returns "" if no good suggestion is
// found.
func suggestFlag(args []string, flagSet *pflag.FlagSet) string {
	defined := make(map[string]bool)
	var candidates []string
	flagSet.VisitAll(func(f *pflag.Flag) {
		defined[f.Name] = true
		if f.Shorthand != "" {
			defined[f.Shorthand] = true
		}
		candidates = append(candidates, f.Name)
	})

	for _, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		// Strip the dash prefix and any =value suffix to get the bare
		// name. A bare "-" or the "--" terminator strips to nothing.
		name := strings.TrimLeft(arg, "-")
		if index := strings.IndexByte(name, '='); index >= 0 {
			name = name[:index]
		}
		if name == "" || defined[name] {
			continue
		}

		// Only the first unrecognized flag gets a suggestion; it is
		// the one the parse error is about.
		bestName := ""
		bestDistance := suggestionThreshold + 1
		for _, candidate := range candidates {
			if distance := levenshtein(name, candidate); distance < bestDistance {
				bestDistance = distance
				bestName = candidate
			}
		}
		if bestName == "" {
			return ""
		}
		if len(bestName) == 1 {
			return "-" + bestName
		}
		return "--" + bestName
	}

	return ""
}

// levenshtein computes the Levenshtein edit distance between two
// strings: the minimum number of single-character insertions,
// deletions, or substitutions required to change one into the other.
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	// Two rows of the distance matrix, swapped each iteration. This
	// is O(min(m,n)) space instead of O(m*n).
	if len(a) > len(b) {
		a, b = b, a
	}

	previous := make([]int, len(a)+1)
	current := make([]int, len(a)+1)
	for i := range previous {
		previous[i] = i
	}

	for j := 1; j <= len(b); j++ {
		current[0] = j

		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			deletion := previous[i] + 1
			insertion := current[i-1] + 1
			substitution := previous[i-1] + cost

			current[i] = min(deletion, min(insertion, substitution))
		}

		previous, current = current, previous
	}

	return previous[len(a)]
}
