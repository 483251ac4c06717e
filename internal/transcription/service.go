// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_transcription

import (
	"context"
	"io"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

// Service fronts the configured speech-to-text provider. A nil provider is
// a valid deployment (transcription not purchased / not configured); every
// request then fails with ErrTranscriptionUnavailable so callers can tell
// "never works here" apart from a retryable request failure.
type Service struct {
	logger   commons.Logger
	provider internal_type.SpeechToText
}

// NewService builds the transcription service. provider may be nil.
func NewService(logger commons.Logger, provider internal_type.SpeechToText) *Service {
	return &Service{logger: logger, provider: provider}
}

// Available reports whether a provider is configured.
func (s *Service) Available() bool {
	return s.provider != nil
}

// Transcribe runs the audio through the configured provider. Provider
// errors come back as TranscriptionFailedError; the session's recording
// artifact is not affected either way.
func (s *Service) Transcribe(ctx context.Context, audio io.Reader, filename string, opts internal_type.TranscribeOptions) (*internal_type.TranscriptResult, error) {
	if s.provider == nil {
		return nil, internal_type.ErrTranscriptionUnavailable
	}
	result, err := s.provider.Transcribe(ctx, audio, filename, opts)
	if err != nil {
		s.logger.Errorf("transcription via %s failed: %+v", s.provider.Name(), err)
		return nil, &internal_type.TranscriptionFailedError{
			Provider: s.provider.Name(),
			Detail:   err.Error(),
			Err:      err,
		}
	}
	s.logger.Debugw("transcription complete",
		"provider", s.provider.Name(), "segments", len(result.Segments), "language", result.Language)
	return result, nil
}
