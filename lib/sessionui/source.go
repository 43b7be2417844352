// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionui

import (
	"context"
	"fmt"

	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// Source provides the session data the browser displays. The
// abstraction decouples the TUI from the store so tests can substitute
// an in-memory implementation, and keeps the Model free of store
// plumbing (backend selection, directory scoping).
type Source interface {
	// Sessions returns the browsable sessions, most recently updated
	// first.
	Sessions(ctx context.Context) ([]sessionstore.SessionOverview, error)

	// Transcript loads the full conversation of one session.
	Transcript(ctx context.Context, sessionID string) (*Transcript, error)
}

// SectionKind classifies a transcript section for rendering: plain
// markdown text, model reasoning, or a tool invocation.
type SectionKind int

const (
	SectionText SectionKind = iota
	SectionReasoning
	SectionTool
)

// TranscriptSection is one renderable chunk of a message: a text
// part, a reasoning part, or a tool call. Text and reasoning bodies
// are markdown; tool bodies are verbatim output.
type TranscriptSection struct {
	Kind SectionKind

	// Title is set for tool sections: the tool name plus its status,
	// like "bash (completed)". Empty for text and reasoning.
	Title string

	// Status is the tool-call status for tool sections, used to pick
	// the title color. Empty otherwise.
	Status sessionstore.ToolStatus

	Body string
}

// TranscriptMessage is one conversation turn with its renderable
// sections in part order.
type TranscriptMessage struct {
	ID      string
	Role    sessionstore.MessageRole
	Agent   string
	Model   string // "provider/model" when recorded, else empty.
	Created int64  // Unix milliseconds.

	// Tokens is the assistant turn's token accounting, nil for user
	// turns and for assistant turns without usage data.
	Tokens *sessionstore.TokenUsage

	Sections []TranscriptSection
}

// Transcript is a fully loaded session conversation.
type Transcript struct {
	SessionID string
	Messages  []TranscriptMessage
}

// StoreSource reads sessions from a [sessionstore.Store], scoped to
// one worktree directory the way the rest of the harness is.
type StoreSource struct {
	store     sessionstore.Store
	directory string
}

// NewStoreSource creates a Source over the given store, listing the
// sessions recorded for the given worktree directory.
func NewStoreSource(store sessionstore.Store, directory string) *StoreSource {
	return &StoreSource{store: store, directory: directory}
}

// Sessions implements [Source].
func (source *StoreSource) Sessions(ctx context.Context) ([]sessionstore.SessionOverview, error) {
	return sessionstore.ListSessions(ctx, source.store, source.directory, sessionstore.ListOptions{})
}

// Transcript implements [Source]. Messages come back in creation
// order with their parts folded into sections. Step-finish parts are
// dropped: their token accounting already lives on the assistant
// message, and they carry no conversation content.
func (source *StoreSource) Transcript(ctx context.Context, sessionID string) (*Transcript, error) {
	messages, err := source.store.GetSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading messages for %s: %w", sessionID, err)
	}

	transcript := &Transcript{SessionID: sessionID}
	for _, message := range messages {
		turn := TranscriptMessage{
			ID:      message.ID(),
			Role:    message.Role,
			Agent:   message.Agent(),
			Created: message.Created(),
		}
		switch message.Role {
		case sessionstore.RoleUser:
			if message.User.Model != nil {
				turn.Model = modelLabel(*message.User.Model)
			}
		case sessionstore.RoleAssistant:
			if message.Assistant.Model != nil {
				turn.Model = modelLabel(*message.Assistant.Model)
			}
			if usage := message.Assistant.Tokens; usage.Input > 0 || usage.Output > 0 {
				tokens := usage
				turn.Tokens = &tokens
			}
		}

		parts, err := source.store.GetMessageParts(ctx, message.ID())
		if err != nil {
			return nil, fmt.Errorf("loading parts for %s: %w", message.ID(), err)
		}
		for _, part := range parts {
			if section, ok := sectionFromPart(part); ok {
				turn.Sections = append(turn.Sections, section)
			}
		}

		transcript.Messages = append(transcript.Messages, turn)
	}
	return transcript, nil
}

// sectionFromPart converts one stored part into a renderable section.
// Returns false for parts with nothing to show: step-finish markers,
// empty text, and unknown part types.
func sectionFromPart(part sessionstore.Part) (TranscriptSection, bool) {
	switch part.Type {
	case sessionstore.PartTypeText:
		if part.Text.Text == "" {
			return TranscriptSection{}, false
		}
		return TranscriptSection{Kind: SectionText, Body: part.Text.Text}, true

	case sessionstore.PartTypeReasoning:
		if part.Reasoning.Text == "" {
			return TranscriptSection{}, false
		}
		return TranscriptSection{Kind: SectionReasoning, Body: part.Reasoning.Text}, true

	case sessionstore.PartTypeTool:
		tool := part.Tool
		section := TranscriptSection{
			Kind:   SectionTool,
			Title:  fmt.Sprintf("%s (%s)", tool.Tool, tool.State.Status),
			Status: tool.State.Status,
			Body:   tool.State.Output,
		}
		// A humanized title from the runtime ("Read config.yaml")
		// beats the bare tool name.
		if tool.State.Title != "" {
			section.Title = fmt.Sprintf("%s (%s)", tool.State.Title, tool.State.Status)
		}
		if section.Body == "" && tool.State.Error != "" {
			section.Body = tool.State.Error
		}
		return section, true
	}
	return TranscriptSection{}, false
}

// modelLabel formats a model reference as "provider/model", dropping
// whichever half is missing.
func modelLabel(ref sessionstore.ModelRef) string {
	switch {
	case ref.ProviderID != "" && ref.ModelID != "":
		return ref.ProviderID + "/" + ref.ModelID
	case ref.ModelID != "":
		return ref.ModelID
	default:
		return ref.ProviderID
	}
}
