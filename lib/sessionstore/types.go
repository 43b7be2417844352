// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"encoding/json"
	"fmt"
)

// TimeInfo carries the creation and last-update instants of a project
// or session, in Unix milliseconds. The runtime stamps these; this
// package only reads them.
type TimeInfo struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// Project is the persistent identity of one working-directory
// checkout. Projects are created lazily by the runtime the first time
// a session is written under a new worktree and are never deleted by
// this package (only sessions are pruned).
type Project struct {
	ID       string   `json:"id"`
	Worktree string   `json:"worktree"`
	VCS      string   `json:"vcs,omitempty"`
	Time     TimeInfo `json:"time"`
}

// FileDiff is one file's change within a session diff summary.
type FileDiff struct {
	File      string `json:"file"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
}

// DiffSummary aggregates the file changes a session produced.
type DiffSummary struct {
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	Files     int        `json:"files"`
	Diffs     []FileDiff `json:"diffs,omitempty"`
}

// ShareInfo records that a session was shared and where.
type ShareInfo struct {
	URL string `json:"url"`
}

// RevertInfo records the runtime's revert state for a session.
type RevertInfo struct {
	MessageID string  `json:"messageID"`
	PartID    *string `json:"partID,omitempty"`
	Snapshot  *string `json:"snapshot,omitempty"`
	Diff      *string `json:"diff,omitempty"`
}

// Session is one unit of agent work. A session with no ParentID is a
// main session; a session with one is a child/branch session whose
// retention is bound entirely to its parent. Sessions form a forest of
// depth one.
//
// Permission is carried opaquely: the runtime defines its shape and
// this package never interprets it, but a record read and written back
// must not lose it.
type Session struct {
	ID         string          `json:"id"`
	ProjectID  string          `json:"projectID"`
	Directory  string          `json:"directory"`
	ParentID   *string         `json:"parentID,omitempty"`
	Title      string          `json:"title"`
	Version    string          `json:"version"`
	Time       TimeInfo        `json:"time"`
	Summary    *DiffSummary    `json:"summary,omitempty"`
	Share      *ShareInfo      `json:"share,omitempty"`
	Permission json.RawMessage `json:"permission,omitempty"`
	Revert     *RevertInfo     `json:"revert,omitempty"`
}

// IsChild reports whether the session is a child/branch session.
func (s *Session) IsChild() bool {
	return s.ParentID != nil
}

// MessageRole discriminates the two message variants.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ModelRef names the provider and model a message was produced with.
type ModelRef struct {
	ProviderID string `json:"providerID"`
	ModelID    string `json:"modelID"`
}

// CacheUsage counts prompt-cache token traffic.
type CacheUsage struct {
	Read  int64 `json:"read"`
	Write int64 `json:"write"`
}

// TokenUsage counts the tokens an assistant message consumed.
type TokenUsage struct {
	Input     int64      `json:"input"`
	Output    int64      `json:"output"`
	Reasoning int64      `json:"reasoning"`
	Cache     CacheUsage `json:"cache"`
}

// MessageTime carries a message's creation instant and, for assistant
// messages that finished, its completion instant. Unix milliseconds.
type MessageTime struct {
	Created   int64  `json:"created"`
	Completed *int64 `json:"completed,omitempty"`
}

// UserMessage is input to the agent: a person's turn, or a synthetic
// record like the run summary this package writes back. It names the
// agent persona and model the turn was addressed to.
type UserMessage struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionID"`
	Role      MessageRole `json:"role"`
	Time      MessageTime `json:"time"`
	Agent     string      `json:"agent,omitempty"`
	Model     *ModelRef   `json:"model,omitempty"`
}

// AssistantMessage is one model turn, with its cost and token
// accounting and, when the turn ended abnormally, a terminal error.
type AssistantMessage struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionID"`
	Role      MessageRole `json:"role"`
	Time      MessageTime `json:"time"`
	Agent     string      `json:"agent,omitempty"`
	Model     *ModelRef   `json:"model,omitempty"`
	Cost      float64     `json:"cost"`
	Tokens    TokenUsage  `json:"tokens"`
	Error     *string     `json:"error,omitempty"`
}

// Message is the tagged union of the two message variants. Exactly one
// of User and Assistant is non-nil, matching Role. On the wire a
// message is the flat variant object; the wrapper exists so Go code
// can switch exhaustively on Role instead of type-asserting.
type Message struct {
	Role      MessageRole
	User      *UserMessage
	Assistant *AssistantMessage
}

// ID returns the message id regardless of variant.
func (m Message) ID() string {
	switch m.Role {
	case RoleUser:
		return m.User.ID
	case RoleAssistant:
		return m.Assistant.ID
	}
	return ""
}

// SessionID returns the owning session id regardless of variant.
func (m Message) SessionID() string {
	switch m.Role {
	case RoleUser:
		return m.User.SessionID
	case RoleAssistant:
		return m.Assistant.SessionID
	}
	return ""
}

// Agent returns the agent persona recorded on the message, or empty
// when the variant carries none.
func (m Message) Agent() string {
	switch m.Role {
	case RoleUser:
		return m.User.Agent
	case RoleAssistant:
		return m.Assistant.Agent
	}
	return ""
}

// Created returns the message creation instant in Unix milliseconds.
func (m Message) Created() int64 {
	switch m.Role {
	case RoleUser:
		return m.User.Time.Created
	case RoleAssistant:
		return m.Assistant.Time.Created
	}
	return 0
}

// MarshalJSON emits the flat variant object the runtime stores on
// disk. A wrapper whose variant pointer does not match Role is a
// programming error and fails loudly.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Role {
	case RoleUser:
		if m.User == nil {
			return nil, fmt.Errorf("user message has no payload")
		}
		return json.Marshal(m.User)
	case RoleAssistant:
		if m.Assistant == nil {
			return nil, fmt.Errorf("assistant message has no payload")
		}
		return json.Marshal(m.Assistant)
	}
	return nil, fmt.Errorf("unknown message role %q", m.Role)
}

// UnmarshalJSON reads the role discriminator, then decodes the record
// into the matching variant. An unrecognized role is an error: a newer
// runtime's records must be skipped by the caller, not silently
// misfiled.
func (m *Message) UnmarshalJSON(data []byte) error {
	var probe struct {
		Role MessageRole `json:"role"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("reading message role: %w", err)
	}
	switch probe.Role {
	case RoleUser:
		var user UserMessage
		if err := json.Unmarshal(data, &user); err != nil {
			return fmt.Errorf("decoding user message: %w", err)
		}
		*m = Message{Role: RoleUser, User: &user}
	case RoleAssistant:
		var assistant AssistantMessage
		if err := json.Unmarshal(data, &assistant); err != nil {
			return fmt.Errorf("decoding assistant message: %w", err)
		}
		*m = Message{Role: RoleAssistant, Assistant: &assistant}
	default:
		return fmt.Errorf("unknown message role %q", probe.Role)
	}
	return nil
}

// PartType discriminates the four part variants.
type PartType string

const (
	PartTypeText       PartType = "text"
	PartTypeReasoning  PartType = "reasoning"
	PartTypeTool       PartType = "tool"
	PartTypeStepFinish PartType = "step-finish"
)

// ToolStatus is the tool-call state machine: pending, then running,
// then completed or error.
type ToolStatus string

const (
	ToolStatusPending   ToolStatus = "pending"
	ToolStatusRunning   ToolStatus = "running"
	ToolStatusCompleted ToolStatus = "completed"
	ToolStatusError     ToolStatus = "error"
)

// ToolTime brackets a tool call. End is present only once the call
// reached a terminal state.
type ToolTime struct {
	Start int64  `json:"start"`
	End   *int64 `json:"end,omitempty"`
}

// ToolState is the mutable portion of a tool part. Output and Title
// are set only in the completed state; Error only in the error state.
type ToolState struct {
	Status ToolStatus      `json:"status"`
	Input  json.RawMessage `json:"input,omitempty"`
	Output string          `json:"output,omitempty"`
	Title  string          `json:"title,omitempty"`
	Error  string          `json:"error,omitempty"`
	Time   *ToolTime       `json:"time,omitempty"`
}

// TextPart carries plain message text.
type TextPart struct {
	ID        string   `json:"id"`
	SessionID string   `json:"sessionID"`
	MessageID string   `json:"messageID"`
	Type      PartType `json:"type"`
	Text      string   `json:"text"`
}

// ReasoningPart carries the model's reasoning text.
type ReasoningPart struct {
	ID        string   `json:"id"`
	SessionID string   `json:"sessionID"`
	MessageID string   `json:"messageID"`
	Type      PartType `json:"type"`
	Text      string   `json:"text"`
}

// ToolPart records one tool invocation and its state machine.
type ToolPart struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionID"`
	MessageID string    `json:"messageID"`
	Type      PartType  `json:"type"`
	CallID    string    `json:"callID,omitempty"`
	Tool      string    `json:"tool"`
	State     ToolState `json:"state"`
}

// StepFinishPart marks the end of one model step with its cost and
// token accounting.
type StepFinishPart struct {
	ID        string      `json:"id"`
	SessionID string      `json:"sessionID"`
	MessageID string      `json:"messageID"`
	Type      PartType    `json:"type"`
	Cost      float64     `json:"cost,omitempty"`
	Tokens    *TokenUsage `json:"tokens,omitempty"`
}

// Part is the tagged union of the four part variants, with the same
// wrapper contract as [Message]: exactly one variant pointer is
// non-nil, matching Type, and the wire shape is the flat variant
// object.
type Part struct {
	Type       PartType
	Text       *TextPart
	Reasoning  *ReasoningPart
	Tool       *ToolPart
	StepFinish *StepFinishPart
}

// ID returns the part id regardless of variant.
func (p Part) ID() string {
	switch p.Type {
	case PartTypeText:
		return p.Text.ID
	case PartTypeReasoning:
		return p.Reasoning.ID
	case PartTypeTool:
		return p.Tool.ID
	case PartTypeStepFinish:
		return p.StepFinish.ID
	}
	return ""
}

// MessageID returns the owning message id regardless of variant.
func (p Part) MessageID() string {
	switch p.Type {
	case PartTypeText:
		return p.Text.MessageID
	case PartTypeReasoning:
		return p.Reasoning.MessageID
	case PartTypeTool:
		return p.Tool.MessageID
	case PartTypeStepFinish:
		return p.StepFinish.MessageID
	}
	return ""
}

// SessionID returns the owning session id regardless of variant.
func (p Part) SessionID() string {
	switch p.Type {
	case PartTypeText:
		return p.Text.SessionID
	case PartTypeReasoning:
		return p.Reasoning.SessionID
	case PartTypeTool:
		return p.Tool.SessionID
	case PartTypeStepFinish:
		return p.StepFinish.SessionID
	}
	return ""
}

// MarshalJSON emits the flat variant object the runtime stores on
// disk.
func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case PartTypeText:
		if p.Text == nil {
			return nil, fmt.Errorf("text part has no payload")
		}
		return json.Marshal(p.Text)
	case PartTypeReasoning:
		if p.Reasoning == nil {
			return nil, fmt.Errorf("reasoning part has no payload")
		}
		return json.Marshal(p.Reasoning)
	case PartTypeTool:
		if p.Tool == nil {
			return nil, fmt.Errorf("tool part has no payload")
		}
		return json.Marshal(p.Tool)
	case PartTypeStepFinish:
		if p.StepFinish == nil {
			return nil, fmt.Errorf("step-finish part has no payload")
		}
		return json.Marshal(p.StepFinish)
	}
	return nil, fmt.Errorf("unknown part type %q", p.Type)
}

// UnmarshalJSON reads the type discriminator, then decodes the record
// into the matching variant. An unrecognized type is an error, handled
// by the caller the same way as an unknown message role.
func (p *Part) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type PartType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("reading part type: %w", err)
	}
	switch probe.Type {
	case PartTypeText:
		var text TextPart
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("decoding text part: %w", err)
		}
		*p = Part{Type: PartTypeText, Text: &text}
	case PartTypeReasoning:
		var reasoning ReasoningPart
		if err := json.Unmarshal(data, &reasoning); err != nil {
			return fmt.Errorf("decoding reasoning part: %w", err)
		}
		*p = Part{Type: PartTypeReasoning, Reasoning: &reasoning}
	case PartTypeTool:
		var tool ToolPart
		if err := json.Unmarshal(data, &tool); err != nil {
			return fmt.Errorf("decoding tool part: %w", err)
		}
		*p = Part{Type: PartTypeTool, Tool: &tool}
	case PartTypeStepFinish:
		var stepFinish StepFinishPart
		if err := json.Unmarshal(data, &stepFinish); err != nil {
			return fmt.Errorf("decoding step-finish part: %w", err)
		}
		*p = Part{Type: PartTypeStepFinish, StepFinish: &stepFinish}
	default:
		return fmt.Errorf("unknown part type %q", probe.Type)
	}
	return nil
}

// TodoStatus is the lifecycle of one todo item.
type TodoStatus string

const (
	TodoStatusPending    TodoStatus = "pending"
	TodoStatusInProgress TodoStatus = "in_progress"
	TodoStatusCompleted  TodoStatus = "completed"
	TodoStatusCancelled  TodoStatus = "cancelled"
)

// TodoItem is one entry in a session's todo list, used only to report
// progress counts.
type TodoItem struct {
	ID       string     `json:"id"`
	Content  string     `json:"content"`
	Status   TodoStatus `json:"status"`
	Priority string     `json:"priority,omitempty"`
}
