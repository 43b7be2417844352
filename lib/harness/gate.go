// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"fmt"
	"strings"

	"github.com/keepsake-ci/keepsake/lib/github"
)

// ShouldRun decides whether a normalized event warrants invoking the
// agent. Comment events are gated on the configured mention so
// ordinary conversation on a thread does not burn agent runs: the
// comment must address the agent with "@<mention>" outside code
// spans, or start a line with the "/<mention>" command. Every other
// event kind runs unconditionally; the workflow's own trigger
// configuration is the filter there.
//
// The returned reason is empty when the event should run, and a
// loggable explanation when it should not.
func ShouldRun(event *RunEvent, mention string) (bool, string) {
	if event.Kind != EventIssueComment || mention == "" {
		return true, ""
	}
	if github.Mentioned([]byte(event.Instruction), mention) {
		return true, ""
	}
	if hasSlashCommand(event.Instruction, mention) {
		return true, ""
	}
	return false, fmt.Sprintf("comment does not address @%s", mention)
}

// hasSlashCommand reports whether any line of body starts with
// "/<word>" as a standalone command.
func hasSlashCommand(body, word string) bool {
	command := "/" + word
	for _, line := range strings.Split(body, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), command)
		if !ok {
			continue
		}
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return true
		}
	}
	return false
}

// mentionSeparators are the characters that may follow a leading
// mention token before the instruction proper begins.
const mentionSeparators = " \t\r\n:,"

// StripMention removes a leading "@<mention>" or "/<mention>" token
// from a comment so the prompt reads as a direct instruction. A body
// that does not start with the mention is returned trimmed but
// otherwise unchanged.
func StripMention(body, mention string) string {
	trimmed := strings.TrimSpace(body)
	if mention == "" {
		return trimmed
	}
	for _, prefix := range []string{"@" + mention, "/" + mention} {
		rest, ok := strings.CutPrefix(trimmed, prefix)
		if !ok {
			continue
		}
		if rest == "" {
			return ""
		}
		// A longer login or command ("@keepsake-staging") is not
		// this mention.
		if !strings.ContainsRune(mentionSeparators, rune(rest[0])) {
			continue
		}
		return strings.TrimLeft(rest, mentionSeparators)
	}
	return trimmed
}
