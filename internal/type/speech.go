// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_type

import (
	"context"
	"io"
)

// TranscriptSegment is one timestamped span of recognized speech.
// Confidence, AvgLogProb and NoSpeechProb are provider-reported quality
// signals; a provider fills the ones it has.
type TranscriptSegment struct {
	ID           int     `json:"id"`
	StartSec     float64 `json:"startSec"`
	EndSec       float64 `json:"endSec"`
	Text         string  `json:"text"`
	Confidence   float64 `json:"confidence,omitempty"`
	AvgLogProb   float64 `json:"avgLogProb,omitempty"`
	NoSpeechProb float64 `json:"noSpeechProb,omitempty"`
}

// TranscriptResult is the full text plus the ordered segment batch.
// Segments are immutable once returned and owned by the caller.
type TranscriptResult struct {
	Text        string              `json:"text"`
	Language    string              `json:"language,omitempty"`
	DurationSec float64             `json:"durationSec,omitempty"`
	Segments    []TranscriptSegment `json:"segments"`
}

// TranscribeOptions bias recognition. Both fields are optional.
type TranscribeOptions struct {
	// Language hint, BCP-47 or ISO-639-1 depending on the provider.
	Language string `json:"language,omitempty"`
	// Prompt is contextual text to bias recognition (names, jargon).
	Prompt string `json:"prompt,omitempty"`
}

// SpeechToText is the abstract speech-to-text boundary.
type SpeechToText interface {
	Name() string
	Transcribe(ctx context.Context, audio io.Reader, filename string, opts TranscribeOptions) (*TranscriptResult, error)
}
