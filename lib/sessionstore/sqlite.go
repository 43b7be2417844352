// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/keepsake-ci/keepsake/lib/sqlitepool"
)

// sqliteSchema mirrors the database-backed runtime's layout: one table
// per record kind, the record itself as a JSON payload, and the keys
// this package filters on lifted into indexed columns. Creating the
// tables is idempotent, so opening a database the runtime has not
// touched yet (first run on a fresh cache) works too.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS project (
	id   TEXT PRIMARY KEY,
	data TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session (
	id         TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS session_project ON session (project_id);

CREATE TABLE IF NOT EXISTS message (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS message_session ON message (session_id);

CREATE TABLE IF NOT EXISTS part (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS part_message ON part (message_id);
CREATE INDEX IF NOT EXISTS part_session ON part (session_id);

CREATE TABLE IF NOT EXISTS todo (
	session_id TEXT PRIMARY KEY,
	data       TEXT NOT NULL
);
`

// SQLiteStore reads and writes the database-backed session layout.
type SQLiteStore struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// openSQLiteStore opens the embedded database and ensures the schema
// exists. The pool stays small: the harness is single-writer, and one
// spare connection covers read paths that overlap a delete.
func openSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     path,
		PoolSize: 2,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, sqliteSchema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return &SQLiteStore{pool: pool, logger: logger}, nil
}

// Close implements [Store].
func (s *SQLiteStore) Close() error {
	return s.pool.Close()
}

// FindProjectByDirectory implements [Store]. Projects are few, so this
// scans the table and matches in Go; the payload is the source of
// truth and the worktree is not lifted into a column.
func (s *SQLiteStore) FindProjectByDirectory(ctx context.Context, directory string) (*Project, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var match *Project
	err = sqlitex.Execute(conn, "SELECT id, data FROM project", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if match != nil {
				return nil
			}
			var project Project
			if err := json.Unmarshal([]byte(stmt.ColumnText(1)), &project); err != nil {
				s.logger.Warn("skipping unreadable project record",
					"project_id", stmt.ColumnText(0),
					"error", err,
				)
				return nil
			}
			if project.Worktree == directory {
				match = &project
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scanning projects: %w", err)
	}
	if match == nil {
		s.logger.Debug("no project for directory", "directory", directory)
	}
	return match, nil
}

// ListSessionsForProject implements [Store].
func (s *SQLiteStore) ListSessionsForProject(ctx context.Context, projectID string) ([]Session, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var sessions []Session
	err = sqlitex.Execute(conn, "SELECT id, data FROM session WHERE project_id = ?", &sqlitex.ExecOptions{
		Args: []any{projectID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var session Session
			if err := json.Unmarshal([]byte(stmt.ColumnText(1)), &session); err != nil {
				s.logger.Warn("skipping unreadable session record",
					"session_id", stmt.ColumnText(0),
					"error", err,
				)
				return nil
			}
			sessions = append(sessions, session)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions for %s: %w", projectID, err)
	}
	return sessions, nil
}

// GetSession implements [Store].
func (s *SQLiteStore) GetSession(ctx context.Context, projectID, sessionID string) (*Session, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var session *Session
	err = sqlitex.Execute(conn, "SELECT data FROM session WHERE project_id = ? AND id = ?", &sqlitex.ExecOptions{
		Args: []any{projectID, sessionID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var decoded Session
			if err := json.Unmarshal([]byte(stmt.ColumnText(0)), &decoded); err != nil {
				return fmt.Errorf("decoding session %s: %w", sessionID, err)
			}
			session = &decoded
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading session %s: %w", sessionID, err)
	}
	if session == nil {
		s.logger.Debug("session not found",
			"project_id", projectID,
			"session_id", sessionID,
		)
	}
	return session, nil
}

// GetSessionMessages implements [Store]. Ordering by id is creation
// order for timestamp-prefixed ids.
func (s *SQLiteStore) GetSessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var messages []Message
	err = sqlitex.Execute(conn, "SELECT id, data FROM message WHERE session_id = ? ORDER BY id", &sqlitex.ExecOptions{
		Args: []any{sessionID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var message Message
			if err := json.Unmarshal([]byte(stmt.ColumnText(1)), &message); err != nil {
				s.logger.Warn("skipping unreadable message record",
					"message_id", stmt.ColumnText(0),
					"error", err,
				)
				return nil
			}
			messages = append(messages, message)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("listing messages for %s: %w", sessionID, err)
	}
	return messages, nil
}

// GetMessageParts implements [Store].
func (s *SQLiteStore) GetMessageParts(ctx context.Context, messageID string) ([]Part, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var parts []Part
	err = sqlitex.Execute(conn, "SELECT id, data FROM part WHERE message_id = ? ORDER BY id", &sqlitex.ExecOptions{
		Args: []any{messageID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			var part Part
			if err := json.Unmarshal([]byte(stmt.ColumnText(1)), &part); err != nil {
				s.logger.Warn("skipping unreadable part record",
					"part_id", stmt.ColumnText(0),
					"error", err,
				)
				return nil
			}
			parts = append(parts, part)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("listing parts for %s: %w", messageID, err)
	}
	return parts, nil
}

// GetSessionTodos implements [Store].
func (s *SQLiteStore) GetSessionTodos(ctx context.Context, sessionID string) ([]TodoItem, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var todos []TodoItem
	err = sqlitex.Execute(conn, "SELECT data FROM todo WHERE session_id = ?", &sqlitex.ExecOptions{
		Args: []any{sessionID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			if err := json.Unmarshal([]byte(stmt.ColumnText(0)), &todos); err != nil {
				return fmt.Errorf("decoding todos for %s: %w", sessionID, err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reading todos for %s: %w", sessionID, err)
	}
	return todos, nil
}

// DeleteSession implements [Store]. The whole removal runs in one
// IMMEDIATE transaction; freed bytes are the stored payload lengths,
// not filesystem bytes, which is a usable estimate for the prune
// report.
func (s *SQLiteStore) DeleteSession(ctx context.Context, projectID, sessionID string) (freed int64, err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, err
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return 0, fmt.Errorf("deleting session %s: begin transaction: %w", sessionID, err)
	}
	defer endTransaction(&err)

	sums := []struct {
		query string
		args  []any
	}{
		{"SELECT COALESCE(SUM(LENGTH(data)), 0) FROM part WHERE session_id = ?", []any{sessionID}},
		{"SELECT COALESCE(SUM(LENGTH(data)), 0) FROM message WHERE session_id = ?", []any{sessionID}},
		{"SELECT COALESCE(SUM(LENGTH(data)), 0) FROM todo WHERE session_id = ?", []any{sessionID}},
		{"SELECT COALESCE(SUM(LENGTH(data)), 0) FROM session WHERE project_id = ? AND id = ?", []any{projectID, sessionID}},
	}
	for _, sum := range sums {
		if err = sqlitex.Execute(conn, sum.query, &sqlitex.ExecOptions{
			Args: sum.args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				freed += stmt.ColumnInt64(0)
				return nil
			},
		}); err != nil {
			return 0, fmt.Errorf("sizing session %s: %w", sessionID, err)
		}
	}

	deletes := []struct {
		query string
		args  []any
	}{
		{"DELETE FROM part WHERE session_id = ?", []any{sessionID}},
		{"DELETE FROM message WHERE session_id = ?", []any{sessionID}},
		{"DELETE FROM todo WHERE session_id = ?", []any{sessionID}},
		{"DELETE FROM session WHERE project_id = ? AND id = ?", []any{projectID, sessionID}},
	}
	for _, del := range deletes {
		if err = sqlitex.Execute(conn, del.query, &sqlitex.ExecOptions{Args: del.args}); err != nil {
			return 0, fmt.Errorf("deleting session %s: %w", sessionID, err)
		}
	}

	return freed, nil
}

// AppendMessage implements [Store].
func (s *SQLiteStore) AppendMessage(ctx context.Context, message Message) error {
	id := message.ID()
	sessionID := message.SessionID()
	if id == "" || sessionID == "" {
		return fmt.Errorf("message is missing id or session id")
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding message %s: %w", id, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "INSERT OR REPLACE INTO message (id, session_id, data) VALUES (?, ?, ?)", &sqlitex.ExecOptions{
		Args: []any{id, sessionID, string(data)},
	})
	if err != nil {
		return fmt.Errorf("writing message %s: %w", id, err)
	}
	return nil
}

// AppendPart implements [Store].
func (s *SQLiteStore) AppendPart(ctx context.Context, part Part) error {
	id := part.ID()
	messageID := part.MessageID()
	if id == "" || messageID == "" {
		return fmt.Errorf("part is missing id or message id")
	}
	data, err := json.Marshal(part)
	if err != nil {
		return fmt.Errorf("encoding part %s: %w", id, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "INSERT OR REPLACE INTO part (id, message_id, session_id, data) VALUES (?, ?, ?, ?)", &sqlitex.ExecOptions{
		Args: []any{id, messageID, part.SessionID(), string(data)},
	})
	if err != nil {
		return fmt.Errorf("writing part %s: %w", id, err)
	}
	return nil
}
