// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_type

import "time"

// State is the capture session lifecycle state. Idle is initial; Completed
// and an unrecovered Error are terminal.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StatePaused     State = "paused"
	StateFinalizing State = "finalizing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Terminal reports whether no further transitions can leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateError
}

// CaptureSession is the live recording owned by one controller.
type CaptureSession struct {
	ID                    string    `json:"id"`
	Mode                  Mode      `json:"mode"`
	State                 State     `json:"state"`
	StartedAt             time.Time `json:"startedAt"`
	ChunkIntervalMs       int       `json:"chunkIntervalMs"`
	ChunkSequenceCounter  int       `json:"chunkSequenceCounter"`
	AccumulatedDurationMs int64     `json:"accumulatedDurationMs"`
}

// Chunk is an immutable slice of recorded media. Chunks of one session are
// emitted in strictly increasing SequenceIndex order with no gaps and no
// duplicates; once emitted a chunk is never mutated.
type Chunk struct {
	SequenceIndex int
	ProducedAt    time.Time
	Payload       []byte
	SizeBytes     int
	DurationMs    int64
}

// UploadTarget is the durable destination for a session's artifact. All
// chunks map to keys derived from Key plus their sequence index.
type UploadTarget struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Provider string `json:"provider"`
}

// Artifact is the finalized, storage-resident recording.
type Artifact struct {
	Bucket     string `json:"bucket"`
	Key        string `json:"key"`
	Location   string `json:"location,omitempty"`
	Chunks     int    `json:"chunks"`
	SizeBytes  int64  `json:"sizeBytes"`
	DurationMs int64  `json:"durationMs"`
}
