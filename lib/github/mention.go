// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"regexp"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// maxLoginLength is GitHub's username length limit.
const maxLoginLength = 39

// mentionPattern matches an @ followed by a candidate login. Trailing
// hyphens are trimmed after matching since a GitHub login cannot end
// with one.
var mentionPattern = regexp.MustCompile(`@[A-Za-z0-9][A-Za-z0-9-]*`)

// mentionParserInstance is initialized once and reused. The parser
// configuration never changes and the goldmark Parser is safe to
// share; actual parsing creates per-call state via Parse(reader).
var (
	mentionParserInstance goldmark.Markdown
	mentionParserOnce     sync.Once
)

func mentionParser() goldmark.Markdown {
	mentionParserOnce.Do(func() {
		mentionParserInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return mentionParserInstance
}

// Mentions returns the distinct @-mentions in a markdown comment body,
// in order of first appearance. The body is parsed as GitHub-flavored
// markdown and only prose text is scanned: logins inside fenced code
// blocks, indented code blocks, inline code spans, blockquotes, and
// HTML are ignored. A quoted instruction like "> run @keepsake-bot" or
// a usage example in a code fence therefore never reads as a trigger.
func Mentions(source []byte) []string {
	reader := text.NewReader(source)
	document := mentionParser().Parser().Parse(reader)

	var logins []string
	seen := make(map[string]bool)

	_ = ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindCodeSpan,
			ast.KindBlockquote, ast.KindHTMLBlock, ast.KindRawHTML:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			segment := node.(*ast.Text).Segment
			for _, login := range scanMentions(source, segment) {
				key := strings.ToLower(login)
				if !seen[key] {
					seen[key] = true
					logins = append(logins, login)
				}
			}
		}
		return ast.WalkContinue, nil
	})

	return logins
}

// Mentioned reports whether the given login is @-mentioned in the
// markdown body. Login comparison is case-insensitive, matching how
// GitHub treats usernames.
func Mentioned(source []byte, login string) bool {
	for _, mentioned := range Mentions(source) {
		if strings.EqualFold(mentioned, login) {
			return true
		}
	}
	return false
}

// scanMentions extracts candidate logins from one prose text segment.
// The boundary check looks at the byte before the @ in the full
// source, so "ci@example.com" or "@@bot" never produces a mention.
func scanMentions(source []byte, segment text.Segment) []string {
	var logins []string
	segmentText := segment.Value(source)
	for _, match := range mentionPattern.FindAllIndex(segmentText, -1) {
		globalStart := segment.Start + match[0]
		if globalStart > 0 && isLoginAdjacent(source[globalStart-1]) {
			continue
		}
		login := strings.TrimRight(string(segmentText[match[0]+1:match[1]]), "-")
		if login == "" || len(login) > maxLoginLength {
			continue
		}
		logins = append(logins, login)
	}
	return logins
}

// isLoginAdjacent reports whether a byte immediately before an @ makes
// the @ part of a larger token (an email address, a path, a doubled @)
// rather than the start of a mention.
func isLoginAdjacent(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_', b == '-', b == '@', b == '/':
		return true
	}
	return false
}
