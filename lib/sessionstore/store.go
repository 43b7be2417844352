// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"context"
	"fmt"
	"log/slog"
)

// Store is the reader/writer shared by both storage backends. Absence
// is a nil pointer or empty slice, never an error; errors mean the
// backend itself failed (unreadable directory, denied permission,
// broken database) and the caller is expected to degrade rather than
// abort the job.
type Store interface {
	// FindProjectByDirectory resolves the project owning a worktree
	// path. Nil when no project has ever been created there.
	FindProjectByDirectory(ctx context.Context, directory string) (*Project, error)

	// ListSessionsForProject returns every session belonging to a
	// project, main and child, in no particular order.
	ListSessionsForProject(ctx context.Context, projectID string) ([]Session, error)

	// GetSession returns one session, or nil when it does not exist.
	GetSession(ctx context.Context, projectID, sessionID string) (*Session, error)

	// GetSessionMessages returns a session's messages in creation
	// order.
	GetSessionMessages(ctx context.Context, sessionID string) ([]Message, error)

	// GetMessageParts returns a message's parts in creation order.
	GetMessageParts(ctx context.Context, messageID string) ([]Part, error)

	// GetSessionTodos returns a session's todo list, empty when none
	// was ever written.
	GetSessionTodos(ctx context.Context, sessionID string) ([]TodoItem, error)

	// DeleteSession removes a session with all its messages, parts,
	// and todos, and returns an estimate of the bytes reclaimed (the
	// flat-file backend sums file sizes; the database backend sums
	// stored payload lengths). Deleting a session that no longer
	// exists is not an error.
	DeleteSession(ctx context.Context, projectID, sessionID string) (int64, error)

	// AppendMessage writes one message record in the runtime's
	// native shape.
	AppendMessage(ctx context.Context, message Message) error

	// AppendPart writes one part record in the runtime's native
	// shape.
	AppendPart(ctx context.Context, part Part) error

	// Close releases backend resources. The flat-file backend holds
	// none; the database backend closes its connection pool.
	Close() error
}

// Config holds the parameters for opening a session store.
type Config struct {
	// DataRoot is the agent runtime's storage directory: the root of
	// the flat-file layout, and the parent of the embedded database.
	DataRoot string

	// DatabasePath overrides the embedded database location. Empty
	// means DatabasePath(DataRoot).
	DatabasePath string

	// AgentVersion is the runtime version when known. Empty makes
	// backend selection fall back to the filesystem probe.
	AgentVersion string

	// Logger receives operational messages. If nil, a no-op logger
	// is used.
	Logger *slog.Logger
}

// Open selects the storage backend for the configured runtime version
// and returns a ready store. The flat-file backend needs no setup; the
// database backend opens its connection pool here, so Open is the one
// place a backend failure surfaces before any read.
func Open(cfg Config) (Store, error) {
	if cfg.DataRoot == "" {
		return nil, fmt.Errorf("sessionstore: DataRoot is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	databasePath := cfg.DatabasePath
	if databasePath == "" {
		databasePath = DatabasePath(cfg.DataRoot)
	}

	if IsSQLiteBackend(cfg.AgentVersion, databasePath) {
		logger.Debug("session store backend selected",
			"backend", "sqlite",
			"path", databasePath,
			"agent_version", cfg.AgentVersion,
		)
		return openSQLiteStore(databasePath, logger)
	}

	logger.Debug("session store backend selected",
		"backend", "file",
		"root", cfg.DataRoot,
		"agent_version", cfg.AgentVersion,
	)
	return NewFileStore(cfg.DataRoot, logger), nil
}
