// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_type

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDeviceUnavailable: the OS denied permission or no matching capture
	// device exists. A normal, non-fatal outcome the caller must handle.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrUnsupportedMode: the requested capture capability (e.g. screen
	// grab) is not available on this host.
	ErrUnsupportedMode = errors.New("capture mode not supported")

	// ErrTranscriptionUnavailable: no speech-to-text provider is
	// configured. Permanent for the process, as opposed to a request-level
	// TranscriptionFailedError.
	ErrTranscriptionUnavailable = errors.New("transcription capability not configured")

	// ErrObjectNotFound is returned by ObjectStore.Head for absent keys.
	ErrObjectNotFound = errors.New("object not found")

	// ErrSessionNotFound is returned by the session registry.
	ErrSessionNotFound = errors.New("capture session not found")
)

// InvalidStateTransitionError reports a state-machine misuse: the attempted
// operation and the state it was attempted from. The operation never
// silently no-ops and never mutates state.
type InvalidStateTransitionError struct {
	Op    string
	State State
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: cannot %s while %s", e.Op, e.State)
}

// ChunkUploadFailedError records one chunk exhausting its upload retries.
// Not fatal to the session; finalize surfaces the aggregate.
type ChunkUploadFailedError struct {
	SessionID     string
	SequenceIndex int
	Attempts      int
	Err           error
}

func (e *ChunkUploadFailedError) Error() string {
	return fmt.Sprintf("chunk %d of session %s failed after %d attempts: %v",
		e.SequenceIndex, e.SessionID, e.Attempts, e.Err)
}

func (e *ChunkUploadFailedError) Unwrap() error { return e.Err }

// IncompleteUploadError is returned by finalize when at least one chunk
// never reached the uploaded state. Missing holds the offending sequence
// indices in ascending order.
type IncompleteUploadError struct {
	SessionID string
	Missing   []int
}

func (e *IncompleteUploadError) Error() string {
	idx := make([]string, 0, len(e.Missing))
	sorted := append([]int(nil), e.Missing...)
	sort.Ints(sorted)
	for _, i := range sorted {
		idx = append(idx, fmt.Sprintf("%d", i))
	}
	return fmt.Sprintf("incomplete upload for session %s: chunks [%s] not uploaded",
		e.SessionID, strings.Join(idx, ","))
}

// TranscriptionFailedError is a request-level speech-to-text failure
// carrying the provider's error detail. Retry policy belongs to the caller.
type TranscriptionFailedError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *TranscriptionFailedError) Error() string {
	return fmt.Sprintf("transcription failed (%s): %s", e.Provider, e.Detail)
}

func (e *TranscriptionFailedError) Unwrap() error { return e.Err }
