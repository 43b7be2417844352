// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/keepsake-ci/keepsake/lib/agentconfig"
	"github.com/keepsake-ci/keepsake/lib/archive"
	"github.com/keepsake-ci/keepsake/lib/clock"
	"github.com/keepsake-ci/keepsake/lib/config"
	"github.com/keepsake-ci/keepsake/lib/github"
	"github.com/keepsake-ci/keepsake/lib/prompt"
	"github.com/keepsake-ci/keepsake/lib/runtime"
	"github.com/keepsake-ci/keepsake/lib/secret"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// Options configures a harness run.
type Options struct {
	// Config is the keepsake configuration. Required.
	Config *config.Config

	// Event is the normalized trigger. Required; callers gate events
	// with ShouldRun before invoking Run.
	Event *RunEvent

	// Directory is the working directory for the agent, normally the
	// checked-out repository. Required.
	Directory string

	// Runner invokes the agent runtime. Required.
	Runner runtime.Runner

	// Prompts renders the run prompt and the report body. Required.
	Prompts *prompt.Library

	// GitHub posts the run-report comment. Nil disables reporting;
	// the run itself and store maintenance still happen.
	GitHub *github.Client

	// Clock supplies run timing and the retention "now". Defaults to
	// the real clock.
	Clock clock.Clock

	// Logger receives lifecycle progress. Defaults to a discard
	// logger.
	Logger *slog.Logger
}

func (options Options) validate() error {
	if options.Config == nil {
		return fmt.Errorf("harness: Config is required")
	}
	if options.Event == nil {
		return fmt.Errorf("harness: Event is required")
	}
	if options.Directory == "" {
		return fmt.Errorf("harness: Directory is required")
	}
	if options.Runner == nil {
		return fmt.Errorf("harness: Runner is required")
	}
	if options.Prompts == nil {
		return fmt.Errorf("harness: Prompts is required")
	}
	return nil
}

// Outcome is what a run did, for the caller to surface. The agent's
// own exit status lives in Result; the caller decides whether a
// non-zero exit fails the job, after the outcome has been reported.
type Outcome struct {
	// Event is the trigger the run acted on.
	Event *RunEvent

	// CacheStatus records how the state restore went.
	CacheStatus archive.CacheStatus

	// SessionID is the session the agent worked in, when one was
	// found after the run.
	SessionID string

	// Result is the agent invocation outcome.
	Result runtime.Result

	// Tokens sums token usage over the session's assistant messages.
	// Nil when the session had none or no session was found.
	Tokens *sessionstore.TokenUsage

	// Commits are the commits created during the run, short hashes,
	// newest first.
	Commits []string

	// Pruned is the retention pass result.
	Pruned sessionstore.PruneResult

	// ArchiveSaved records whether the state archive was written.
	ArchiveSaved bool

	// Reported records whether the run-report comment was posted.
	Reported bool
}

// Run executes the full CI lifecycle around one agent invocation:
//  1. Discover the agent runtime (storage root, version).
//  2. Lock the data root and restore the state archive into it.
//  3. Open the session store and assemble the prompt from the
//     trigger and prior sessions.
//  4. Invoke the agent runtime and wait for it to exit.
//  5. Write the run summary into the session the agent worked in.
//  6. Prune sessions past the retention policy.
//  7. Save the state archive for the next run.
//  8. Upsert the run-report comment on the triggering thread.
//
// Failures after the agent has run degrade rather than abort: a
// failed writeback, prune, save, or report is logged and reflected in
// the Outcome, never allowed to discard the work the agent already
// did. Run returns an error only when a stage before the invocation
// fails or the invocation itself cannot start.
func Run(ctx context.Context, options Options) (*Outcome, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	cfg := options.Config
	event := options.Event
	outcome := &Outcome{Event: event}

	discovered, err := agentconfig.Discover(ctx, agentconfig.Options{
		Binary:     cfg.Runtime.Binary,
		ConfigFile: cfg.Runtime.ConfigFile,
		DataRoot:   cfg.Storage.DataRoot,
		Version:    cfg.Storage.AgentVersion,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering agent runtime: %w", err)
	}
	dataRoot := discovered.DataRoot

	archivePath := cfg.ArchivePath()
	if archivePath == "" {
		archivePath = config.DefaultArchivePath(dataRoot)
	}

	archiver, closeIdentity, err := NewArchiver(cfg, clk, logger)
	if err != nil {
		return nil, err
	}
	defer closeIdentity()

	// The lock covers the whole lifecycle, not just the archive
	// operations: the agent process writes the same tree.
	lock, err := archive.AcquireLock(dataRoot)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	restored, err := archiver.Restore(ctx, archivePath, dataRoot)
	outcome.CacheStatus = restored.Status
	if err != nil {
		logger.Warn("state archive restore failed, starting fresh",
			"path", archivePath,
			"status", restored.Status,
			"error", err,
		)
	}

	store, err := sessionstore.Open(sessionstore.Config{
		DataRoot:     dataRoot,
		AgentVersion: discovered.Version,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	storeOpen := true
	defer func() {
		if storeOpen {
			store.Close()
		}
	}()

	runStart := clk.Now()
	data := buildRunContext(ctx, store, logger, event, options.Directory, cfg.GitHub.Mention)
	promptText, err := options.Prompts.Render("run", data)
	if err != nil {
		return nil, fmt.Errorf("rendering run prompt: %w", err)
	}

	headBefore := gitHead(ctx, options.Directory)

	logger.Info("invoking agent runtime",
		"event", event.Kind,
		"repo", event.Repo,
		"sessions", len(data.Sessions),
		"excerpts", len(data.Excerpts),
		"prompt_bytes", len(promptText),
	)
	result, err := options.Runner.Run(ctx, runtime.Invocation{
		Prompt:    promptText,
		Directory: options.Directory,
		Model:     cfg.Runtime.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("agent invocation: %w", err)
	}
	outcome.Result = *result
	if result.Success() {
		logger.Info("agent runtime succeeded", "duration", result.Duration)
	} else {
		logger.Warn("agent runtime failed",
			"exit_code", result.ExitCode,
			"duration", result.Duration,
		)
	}

	outcome.Commits = gitCommitsSince(ctx, options.Directory, headBefore)

	outcome.SessionID, outcome.Tokens = runSession(ctx, store, logger, options.Directory, runStart)
	if outcome.SessionID != "" {
		sessionstore.WriteSessionSummary(ctx, store, clk, logger, outcome.SessionID, sessionstore.RunSummary{
			EventType:      string(event.Kind),
			Repo:           event.Repo,
			Ref:            event.Ref,
			RunID:          event.RunID,
			CacheStatus:    string(outcome.CacheStatus),
			SessionIDs:     []string{outcome.SessionID},
			CreatedCommits: outcome.Commits,
			Duration:       result.Duration,
			TokenUsage:     outcome.Tokens,
		})
	} else {
		logger.Info("run recorded no session, skipping summary writeback")
	}

	if cfg.Retention.Enabled {
		pruned, pruneErr := sessionstore.PruneSessions(ctx, store, clk, logger, options.Directory, sessionstore.PruneOptions{
			MaxSessions: cfg.Retention.MaxSessions,
			MaxAgeDays:  cfg.Retention.MaxAgeDays,
		})
		if pruneErr != nil {
			logger.Warn("retention pass failed", "error", pruneErr)
		} else {
			outcome.Pruned = pruned
		}
	}

	// The embedded database buffers writes; the store must be closed
	// so the on-disk file is complete before it is archived.
	storeOpen = false
	if err := store.Close(); err != nil {
		logger.Warn("closing session store", "error", err)
	}

	if _, err := archiver.Save(ctx, dataRoot, archivePath); err != nil {
		logger.Error("saving state archive", "path", archivePath, "error", err)
	} else {
		outcome.ArchiveSaved = true
	}

	if options.GitHub != nil && event.Number > 0 {
		if err := postReport(ctx, options.GitHub, options.Prompts, event, outcome); err != nil {
			logger.Warn("posting run report", "error", err)
		} else {
			outcome.Reported = true
		}
	}

	return outcome, nil
}

// NewArchiver builds the state archiver from configuration, loading
// the age identity from the configured environment variable when it
// holds one. The returned cleanup releases the identity buffer; call
// it when archiving is done.
func NewArchiver(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (*archive.Archiver, func(), error) {
	if err := archive.ValidateRecipients(cfg.Archive.Recipients); err != nil {
		return nil, nil, err
	}

	archiveConfig := archive.Config{
		Logger:      logger,
		Clock:       clk,
		Recipients:  cfg.Archive.Recipients,
		Compression: cfg.Archive.Compression,
	}
	cleanup := func() {}
	if cfg.Archive.IdentityEnv != "" {
		if value := os.Getenv(cfg.Archive.IdentityEnv); value != "" {
			identity, err := secret.NewFromBytes([]byte(value))
			if err != nil {
				return nil, nil, fmt.Errorf("loading age identity from %s: %w", cfg.Archive.IdentityEnv, err)
			}
			archiveConfig.Identity = identity
			cleanup = func() { identity.Close() }
		}
	}
	return archive.New(archiveConfig), cleanup, nil
}

// runSession finds the session the agent just worked in: the most
// recently updated main session, provided it was touched at or after
// the run started. Returns its id and the summed assistant token
// usage. A run that recorded no session (the runtime crashed before
// its first write) yields an empty id.
func runSession(ctx context.Context, store sessionstore.Store, logger *slog.Logger, directory string, since time.Time) (string, *sessionstore.TokenUsage) {
	overviews, err := sessionstore.ListSessions(ctx, store, directory, sessionstore.ListOptions{Limit: 1})
	if err != nil {
		logger.Warn("listing sessions after run", "error", err)
		return "", nil
	}
	if len(overviews) == 0 || overviews[0].Updated < since.UnixMilli() {
		return "", nil
	}

	sessionID := overviews[0].ID
	messages, err := store.GetSessionMessages(ctx, sessionID)
	if err != nil {
		logger.Warn("loading run session messages", "session_id", sessionID, "error", err)
		return sessionID, nil
	}
	return sessionID, sumAssistantTokens(messages)
}

// sumAssistantTokens totals token usage across a session's assistant
// messages. Nil when there are none.
func sumAssistantTokens(messages []sessionstore.Message) *sessionstore.TokenUsage {
	var total sessionstore.TokenUsage
	found := false
	for _, message := range messages {
		if message.Role != sessionstore.RoleAssistant || message.Assistant == nil {
			continue
		}
		found = true
		tokens := message.Assistant.Tokens
		total.Input += tokens.Input
		total.Output += tokens.Output
		total.Reasoning += tokens.Reasoning
		total.Cache.Read += tokens.Cache.Read
		total.Cache.Write += tokens.Cache.Write
	}
	if !found {
		return nil
	}
	return &total
}
