// Copyright 2026 The Keepsake Authors
// SPDX-License-Identifier: Apache-2.0

// Package sessionui implements a terminal user interface for browsing
// agent session transcripts. Built on bubbletea (Elm architecture),
// it provides a split-pane view with a fuzzy-filterable session list
// and a scrollable transcript pane, connected to a session store via
// the [Source] interface.
//
// The TUI is strictly read-only: it never writes to the store, so it
// is safe to run against a live data root while an agent is working
// in it. Transcripts are loaded lazily (one store round-trip per
// selected session) and rendered as styled markdown with syntax
// highlighting for fenced code blocks.
//
// Data flow:
//
//	[session store on disk]
//	        | (Source interface)
//	    [Model] <- bubbletea event loop
//	        |
//	  [terminal output]
package sessionui
