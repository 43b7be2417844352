// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/keepsake-ci/keepsake/lib/clock"
)

// PruneOptions is the retention policy: keep every main session
// updated within MaxAgeDays, and keep the MaxSessions most recently
// updated regardless of age. The two criteria are a union. Age alone
// would empty the store after a long idle period; count alone could
// discard a session that was active this morning.
type PruneOptions struct {
	MaxSessions int
	MaxAgeDays  int
}

// PruneResult reports what a prune pass actually did. FreedBytes is
// the backends' own per-deletion estimates summed, and may be zero on
// database-backed storage.
type PruneResult struct {
	PrunedCount      int      `json:"prunedCount"`
	PrunedSessionIDs []string `json:"prunedSessionIDs"`
	RemainingCount   int      `json:"remainingCount"`
	FreedBytes       int64    `json:"freedBytes"`
}

// PruneSessions applies the retention policy to a directory's
// sessions. Only main sessions are evaluated; children are never
// judged on their own and are scheduled exactly when their parent is,
// deleted before it so an interrupted pass never strands a child whose
// parent is already gone. A single failed deletion is logged and
// skipped, and the result reflects only the deletions that succeeded.
func PruneSessions(ctx context.Context, store Store, clk clock.Clock, logger *slog.Logger, directory string, opts PruneOptions) (PruneResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var result PruneResult

	project, err := store.FindProjectByDirectory(ctx, directory)
	if err != nil {
		return result, fmt.Errorf("resolving project for %s: %w", directory, err)
	}
	if project == nil {
		return result, nil
	}

	sessions, err := store.ListSessionsForProject(ctx, project.ID)
	if err != nil {
		return result, fmt.Errorf("listing sessions: %w", err)
	}

	// One pass over the forest: split mains from children and build
	// the parent-to-children adjacency up front, so the cascade below
	// is a map lookup instead of a rescan per parent.
	var mains []Session
	childrenOf := make(map[string][]Session)
	for _, session := range sessions {
		if session.IsChild() {
			childrenOf[*session.ParentID] = append(childrenOf[*session.ParentID], session)
			continue
		}
		mains = append(mains, session)
	}
	if len(mains) == 0 {
		return result, nil
	}

	cutoff := clk.Now().Add(-time.Duration(opts.MaxAgeDays) * 24 * time.Hour).UnixMilli()

	keep := make(map[string]bool, len(mains))
	for _, session := range mains {
		if session.Time.Updated >= cutoff {
			keep[session.ID] = true
		}
	}
	sortSessionsByUpdatedDesc(mains)
	for i := 0; i < opts.MaxSessions && i < len(mains); i++ {
		keep[mains[i].ID] = true
	}

	// Delete oldest first so a pass cut short by the job deadline has
	// reclaimed the least valuable history.
	mainsPruned := 0
	for i := len(mains) - 1; i >= 0; i-- {
		session := mains[i]
		if keep[session.ID] {
			continue
		}
		for _, child := range childrenOf[session.ID] {
			if deleteOne(ctx, store, logger, project.ID, child.ID, &result) {
				logger.Debug("pruned child session",
					"session_id", child.ID,
					"parent_id", session.ID,
				)
			}
		}
		if deleteOne(ctx, store, logger, project.ID, session.ID, &result) {
			mainsPruned++
		}
	}

	result.RemainingCount = len(mains) - mainsPruned
	logger.Info("prune pass complete",
		"directory", directory,
		"pruned", result.PrunedCount,
		"remaining", result.RemainingCount,
		"freed_bytes", result.FreedBytes,
	)
	return result, nil
}

// deleteOne removes a single session, folding the outcome into the
// result. Failure is a warning, not an abort: the pass continues and
// the result counts only what was actually removed.
func deleteOne(ctx context.Context, store Store, logger *slog.Logger, projectID, sessionID string, result *PruneResult) bool {
	freed, err := store.DeleteSession(ctx, projectID, sessionID)
	if err != nil {
		logger.Warn("pruning session failed",
			"session_id", sessionID,
			"error", err,
		)
		return false
	}
	result.PrunedCount++
	result.PrunedSessionIDs = append(result.PrunedSessionIDs, sessionID)
	result.FreedBytes += freed
	return true
}
