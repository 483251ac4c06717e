// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_type

import (
	"context"
	"time"
)

// EventKind enumerates the caller-facing capture events.
type EventKind string

const (
	EventStarted       EventKind = "started"
	EventChunkProduced EventKind = "chunk_produced"
	EventPaused        EventKind = "paused"
	EventResumed       EventKind = "resumed"
	// EventChunkFailed warns that one chunk exhausted its upload retries
	// mid-session. The live recording keeps running.
	EventChunkFailed EventKind = "chunk_failed"
	EventError       EventKind = "error"
	EventCompleted   EventKind = "completed"
)

// Event is one capture lifecycle notification. Chunk is set for
// chunk_produced and chunk_failed; Err for chunk_failed and error.
type Event struct {
	Kind      EventKind
	SessionID string
	At        time.Time
	Chunk     *Chunk
	Err       error
}

// ChunkSink receives closed chunks. Implementations must return without
// blocking on I/O; the capture loop never waits on an upload.
type ChunkSink interface {
	OnChunkProduced(ctx context.Context, sessionID string, chunk Chunk, target UploadTarget)
}

// Finalizer settles all of a session's uploads and assembles the artifact.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID string) (*Artifact, error)
}

// UploadFailureNotifier receives the early warning for a chunk that
// exhausted its retries while the session is still live.
type UploadFailureNotifier interface {
	OnChunkUploadFailed(sessionID string, sequenceIndex, attempts int, err error)
}
