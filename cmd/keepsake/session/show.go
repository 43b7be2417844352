// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/keepsake-ci/keepsake/cmd/keepsake/cli"
	"github.com/keepsake-ci/keepsake/lib/sessionstore"
)

// --- show ---

type showParams struct {
	cli.StoreConfig
	cli.JSONOutput
	Directory string `json:"directory" flag:"directory,d" desc:"project directory (default: current directory)"`
}

// transcriptMessage pairs a message with its parts, in creation order.
type transcriptMessage struct {
	Message sessionstore.Message `json:"message"`
	Parts   []sessionstore.Part  `json:"parts"`
}

// sessionTranscript is the full dump of one session.
type sessionTranscript struct {
	Session  sessionstore.Session `json:"session"`
	Messages []transcriptMessage  `json:"messages"`
}

func showCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Dump one session's transcript",
		Description: `Print a session's full transcript: every message with its text,
reasoning, and tool parts, in creation order. Step-finish records are
bookkeeping and are omitted from the text rendering (use --json for
the complete records).`,
		Usage: "keepsake sessions show <session-id> [flags]",
		Examples: []cli.Example{
			{
				Description: "Show a session transcript",
				Command:     "keepsake sessions show ses_8f3a1b2c4d",
			},
			{
				Description: "Dump the raw records as JSON",
				Command:     "keepsake sessions show ses_8f3a1b2c4d --json",
			},
		},
		Params: func() any { return &params },
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one session ID argument\n\nUsage: keepsake sessions show <session-id>")
			}
			sessionID := args[0]

			cfg, err := params.Load()
			if err != nil {
				return err
			}
			directory, err := cli.ResolveDirectory(params.Directory)
			if err != nil {
				return err
			}

			store, err := params.OpenStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			transcript, err := loadTranscript(ctx, store, directory, sessionID)
			if err != nil {
				return err
			}

			if done, err := params.EmitJSON(transcript); done {
				return err
			}

			return writeTranscript(os.Stdout, transcript)
		},
	}
}

// loadTranscript resolves a session through its project and loads
// every message with its parts.
func loadTranscript(ctx context.Context, store sessionstore.Store, directory, sessionID string) (sessionTranscript, error) {
	var transcript sessionTranscript

	project, err := store.FindProjectByDirectory(ctx, directory)
	if err != nil {
		return transcript, err
	}
	if project == nil {
		return transcript, fmt.Errorf("no project recorded for directory %s", directory)
	}

	session, err := store.GetSession(ctx, project.ID, sessionID)
	if err != nil {
		return transcript, err
	}
	if session == nil {
		return transcript, fmt.Errorf("session %s not found in %s", sessionID, directory)
	}
	transcript.Session = *session

	messages, err := store.GetSessionMessages(ctx, sessionID)
	if err != nil {
		return transcript, fmt.Errorf("loading messages: %w", err)
	}
	for _, message := range messages {
		parts, err := store.GetMessageParts(ctx, message.ID())
		if err != nil {
			return transcript, fmt.Errorf("loading parts for %s: %w", message.ID(), err)
		}
		transcript.Messages = append(transcript.Messages, transcriptMessage{
			Message: message,
			Parts:   parts,
		})
	}
	return transcript, nil
}

func writeTranscript(w io.Writer, transcript sessionTranscript) error {
	session := transcript.Session

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "ID:\t%s\n", session.ID)
	if session.Title != "" {
		fmt.Fprintf(writer, "Title:\t%s\n", session.Title)
	}
	fmt.Fprintf(writer, "Directory:\t%s\n", session.Directory)
	fmt.Fprintf(writer, "Created:\t%s\n", formatTimestamp(session.Time.Created))
	fmt.Fprintf(writer, "Updated:\t%s\n", formatTimestamp(session.Time.Updated))
	fmt.Fprintf(writer, "Messages:\t%d\n", len(transcript.Messages))
	if err := writer.Flush(); err != nil {
		return err
	}

	for _, entry := range transcript.Messages {
		fmt.Fprintf(w, "\n--- %s ---\n", turnHeading(entry.Message))
		for _, part := range entry.Parts {
			writePart(w, part)
		}
	}
	return nil
}

// turnHeading labels one turn: role, agent persona when present, and
// the creation time.
func turnHeading(message sessionstore.Message) string {
	heading := string(message.Role)
	if agent := message.Agent(); agent != "" {
		heading += " (" + agent + ")"
	}
	if created := message.Created(); created > 0 {
		heading += " " + formatTimestamp(created)
	}
	return heading
}

func writePart(w io.Writer, part sessionstore.Part) {
	switch part.Type {
	case sessionstore.PartTypeText:
		fmt.Fprintln(w, part.Text.Text)
	case sessionstore.PartTypeReasoning:
		fmt.Fprintf(w, "[reasoning]\n%s\n", part.Reasoning.Text)
	case sessionstore.PartTypeTool:
		state := part.Tool.State
		fmt.Fprintf(w, "[tool: %s (%s)]\n", part.Tool.Tool, state.Status)
		if state.Output != "" {
			fmt.Fprintln(w, state.Output)
		}
		if state.Error != "" {
			fmt.Fprintf(w, "error: %s\n", state.Error)
		}
	case sessionstore.PartTypeStepFinish:
		// Bookkeeping, not conversation content.
	}
}
