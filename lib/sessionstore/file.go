// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FileStore reads and writes the runtime's flat-file session layout.
// The root need not exist: reads against a missing tree report
// absence, and writes create directories on demand. Records are
// written atomically (temp file + rename) so a crash mid-write never
// leaves a half-written record for the next run to misread.
type FileStore struct {
	root   string
	logger *slog.Logger
}

// NewFileStore returns a store over the flat-file layout rooted at
// root.
func NewFileStore(root string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{root: root, logger: logger}
}

// Close implements [Store]. The flat-file backend holds no resources.
func (s *FileStore) Close() error {
	return nil
}

const recordExtension = ".json"

func (s *FileStore) projectDir() string {
	return filepath.Join(s.root, "project")
}

func (s *FileStore) sessionDir(projectID string) string {
	return filepath.Join(s.root, "session", projectID)
}

func (s *FileStore) sessionPath(projectID, sessionID string) string {
	return filepath.Join(s.sessionDir(projectID), sessionID+recordExtension)
}

func (s *FileStore) messageDir(sessionID string) string {
	return filepath.Join(s.root, "message", sessionID)
}

func (s *FileStore) messagePath(sessionID, messageID string) string {
	return filepath.Join(s.messageDir(sessionID), messageID+recordExtension)
}

func (s *FileStore) partDir(messageID string) string {
	return filepath.Join(s.root, "part", messageID)
}

func (s *FileStore) partPath(messageID, partID string) string {
	return filepath.Join(s.partDir(messageID), partID+recordExtension)
}

func (s *FileStore) todoPath(sessionID string) string {
	return filepath.Join(s.root, "todo", sessionID+recordExtension)
}

// FindProjectByDirectory implements [Store]. Projects are few (one per
// checkout the runner has ever seen), so a linear scan of the project
// directory is fine.
func (s *FileStore) FindProjectByDirectory(ctx context.Context, directory string) (*Project, error) {
	paths, err := s.recordFiles(s.projectDir())
	if err != nil {
		return nil, fmt.Errorf("reading project directory: %w", err)
	}
	for _, path := range paths {
		var project Project
		found, err := s.readRecord(path, &project)
		if err != nil {
			s.logger.Warn("skipping unreadable project record",
				"path", path,
				"error", err,
			)
			continue
		}
		if found && project.Worktree == directory {
			return &project, nil
		}
	}
	s.logger.Debug("no project for directory", "directory", directory)
	return nil, nil
}

// ListSessionsForProject implements [Store].
func (s *FileStore) ListSessionsForProject(ctx context.Context, projectID string) ([]Session, error) {
	paths, err := s.recordFiles(s.sessionDir(projectID))
	if err != nil {
		return nil, fmt.Errorf("reading session directory for %s: %w", projectID, err)
	}
	sessions := make([]Session, 0, len(paths))
	for _, path := range paths {
		var session Session
		found, err := s.readRecord(path, &session)
		if err != nil {
			s.logger.Warn("skipping unreadable session record",
				"path", path,
				"error", err,
			)
			continue
		}
		if found {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

// GetSession implements [Store].
func (s *FileStore) GetSession(ctx context.Context, projectID, sessionID string) (*Session, error) {
	var session Session
	found, err := s.readRecord(s.sessionPath(projectID, sessionID), &session)
	if err != nil {
		return nil, err
	}
	if !found {
		s.logger.Debug("session not found",
			"project_id", projectID,
			"session_id", sessionID,
		)
		return nil, nil
	}
	return &session, nil
}

// GetSessionMessages implements [Store]. Directory entries come back
// sorted by name, which for timestamp-prefixed ids is creation order.
func (s *FileStore) GetSessionMessages(ctx context.Context, sessionID string) ([]Message, error) {
	paths, err := s.recordFiles(s.messageDir(sessionID))
	if err != nil {
		return nil, fmt.Errorf("reading message directory for %s: %w", sessionID, err)
	}
	messages := make([]Message, 0, len(paths))
	for _, path := range paths {
		var message Message
		found, err := s.readRecord(path, &message)
		if err != nil {
			// Unknown roles land here too: a newer runtime's records
			// are skipped, not fatal.
			s.logger.Warn("skipping unreadable message record",
				"path", path,
				"error", err,
			)
			continue
		}
		if found {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

// GetMessageParts implements [Store].
func (s *FileStore) GetMessageParts(ctx context.Context, messageID string) ([]Part, error) {
	paths, err := s.recordFiles(s.partDir(messageID))
	if err != nil {
		return nil, fmt.Errorf("reading part directory for %s: %w", messageID, err)
	}
	parts := make([]Part, 0, len(paths))
	for _, path := range paths {
		var part Part
		found, err := s.readRecord(path, &part)
		if err != nil {
			s.logger.Warn("skipping unreadable part record",
				"path", path,
				"error", err,
			)
			continue
		}
		if found {
			parts = append(parts, part)
		}
	}
	return parts, nil
}

// GetSessionTodos implements [Store]. The todo list is a single file
// holding a JSON array.
func (s *FileStore) GetSessionTodos(ctx context.Context, sessionID string) ([]TodoItem, error) {
	var todos []TodoItem
	found, err := s.readRecord(s.todoPath(sessionID), &todos)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return todos, nil
}

// DeleteSession implements [Store]. Removal order is leaves first
// (parts, then messages, then todos, then the session record) so that
// an interrupted delete leaves the session discoverable and a later
// prune pass converges on the rest. Individual failures are collected
// rather than aborting the sweep; the byte count covers only what was
// actually removed.
func (s *FileStore) DeleteSession(ctx context.Context, projectID, sessionID string) (int64, error) {
	var freed int64
	var errs []error

	messageIDs, err := s.recordNames(s.messageDir(sessionID))
	if err != nil {
		errs = append(errs, fmt.Errorf("reading message directory for %s: %w", sessionID, err))
	}
	for _, messageID := range messageIDs {
		n, err := removeTreeSized(s.partDir(messageID))
		freed += n
		if err != nil {
			errs = append(errs, fmt.Errorf("removing parts of %s: %w", messageID, err))
		}
	}

	n, err := removeTreeSized(s.messageDir(sessionID))
	freed += n
	if err != nil {
		errs = append(errs, fmt.Errorf("removing messages of %s: %w", sessionID, err))
	}

	n, err = removeFileSized(s.todoPath(sessionID))
	freed += n
	if err != nil {
		errs = append(errs, fmt.Errorf("removing todos of %s: %w", sessionID, err))
	}

	n, err = removeFileSized(s.sessionPath(projectID, sessionID))
	freed += n
	if err != nil {
		errs = append(errs, fmt.Errorf("removing session %s: %w", sessionID, err))
	}

	return freed, errors.Join(errs...)
}

// AppendMessage implements [Store].
func (s *FileStore) AppendMessage(ctx context.Context, message Message) error {
	id := message.ID()
	sessionID := message.SessionID()
	if id == "" || sessionID == "" {
		return fmt.Errorf("message is missing id or session id")
	}
	return s.writeRecord(s.messagePath(sessionID, id), message)
}

// AppendPart implements [Store].
func (s *FileStore) AppendPart(ctx context.Context, part Part) error {
	id := part.ID()
	messageID := part.MessageID()
	if id == "" || messageID == "" {
		return fmt.Errorf("part is missing id or message id")
	}
	return s.writeRecord(s.partPath(messageID, id), part)
}

// readRecord decodes one JSON record file. A missing file is (false,
// nil); a file that exists but cannot be read or decoded is an error
// for the caller to classify.
func (s *FileStore) readRecord(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// writeRecord writes one JSON record atomically: temp file in the
// target directory, then rename.
func (s *FileStore) writeRecord(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".record-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp record file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp record file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming record into place: %w", err)
	}

	success = true
	return nil
}

// recordFiles lists the record file paths in a directory, sorted by
// name. A missing directory is an empty list. Non-record entries
// (leftover temp files, subdirectories) are ignored.
func (s *FileStore) recordFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExtension) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

// recordNames lists the record ids in a directory (file names with the
// extension stripped), sorted by name.
func (s *FileStore) recordNames(dir string) ([]string, error) {
	paths, err := s.recordFiles(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(paths))
	for _, path := range paths {
		names = append(names, strings.TrimSuffix(filepath.Base(path), recordExtension))
	}
	return names, nil
}

// removeFileSized removes one file and returns its size. A file that
// does not exist frees zero bytes and is not an error.
func removeFileSized(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("inspecting %s: %w", path, err)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("removing %s: %w", path, err)
	}
	return info.Size(), nil
}

// removeTreeSized removes a directory tree and returns the total size
// of the files it held. A tree that does not exist frees zero bytes
// and is not an error.
func removeTreeSized(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sizing %s: %w", dir, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("removing %s: %w", dir, err)
	}
	return total, nil
}
