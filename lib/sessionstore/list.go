// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// ListOptions filters and caps a session listing. The zero value lists
// everything.
type ListOptions struct {
	// Limit caps the number of sessions returned. Zero or negative
	// means no cap.
	Limit int

	// FromDate and ToDate bound the sessions' creation time. A zero
	// time leaves that end unbounded.
	FromDate time.Time
	ToDate   time.Time
}

// SessionOverview is one listed session with the derived fields a
// caller needs to pick prior work: which agent personas touched it and
// how much conversation it holds.
type SessionOverview struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Directory    string   `json:"directory"`
	Created      int64    `json:"created"`
	Updated      int64    `json:"updated"`
	MessageCount int      `json:"messageCount"`
	Agents       []string `json:"agents,omitempty"`
}

// ListSessions lists the main sessions recorded for a directory, most
// recently updated first. Child/branch sessions are an implementation
// detail of the runtime and are never surfaced. A directory no project
// has ever been created for yields an empty list, not an error.
func ListSessions(ctx context.Context, store Store, directory string, opts ListOptions) ([]SessionOverview, error) {
	project, err := store.FindProjectByDirectory(ctx, directory)
	if err != nil {
		return nil, fmt.Errorf("resolving project for %s: %w", directory, err)
	}
	if project == nil {
		return nil, nil
	}

	sessions, err := store.ListSessionsForProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	mains := make([]Session, 0, len(sessions))
	for _, session := range sessions {
		if session.IsChild() {
			continue
		}
		if !opts.FromDate.IsZero() && session.Time.Created < opts.FromDate.UnixMilli() {
			continue
		}
		if !opts.ToDate.IsZero() && session.Time.Created > opts.ToDate.UnixMilli() {
			continue
		}
		mains = append(mains, session)
	}

	sortSessionsByUpdatedDesc(mains)

	if opts.Limit > 0 && len(mains) > opts.Limit {
		mains = mains[:opts.Limit]
	}

	overviews := make([]SessionOverview, 0, len(mains))
	for _, session := range mains {
		messages, err := store.GetSessionMessages(ctx, session.ID)
		if err != nil {
			return nil, fmt.Errorf("loading messages for %s: %w", session.ID, err)
		}
		overviews = append(overviews, SessionOverview{
			ID:           session.ID,
			Title:        session.Title,
			Directory:    session.Directory,
			Created:      session.Time.Created,
			Updated:      session.Time.Updated,
			MessageCount: len(messages),
			Agents:       distinctAgents(messages),
		})
	}
	return overviews, nil
}

// sortSessionsByUpdatedDesc orders sessions most recently updated
// first, with the id as a deterministic tiebreak.
func sortSessionsByUpdatedDesc(sessions []Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].Time.Updated != sessions[j].Time.Updated {
			return sessions[i].Time.Updated > sessions[j].Time.Updated
		}
		return sessions[i].ID > sessions[j].ID
	})
}

// distinctAgents returns the sorted set of agent personas that appear
// on a session's messages.
func distinctAgents(messages []Message) []string {
	seen := make(map[string]bool)
	for _, message := range messages {
		if agent := message.Agent(); agent != "" {
			seen[agent] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}
	agents := make([]string, 0, len(seen))
	for agent := range seen {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	return agents
}
