// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_transcription_whisper

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
	"github.com/glimpsehq/glimpse/pkg/utils"
)

type whisperOption struct {
	mdlOpts utils.Option
}

// GetLanguage is the configured default language hint. Empty means
// auto-detect.
func (wo *whisperOption) GetLanguage() string {
	if language, err := wo.mdlOpts.GetString("transcribe.language"); err == nil {
		return language
	}
	return ""
}

// GetTemperature is the sampling temperature for the transcription model.
func (wo *whisperOption) GetTemperature() float32 {
	if temperature, err := wo.mdlOpts.GetFloat("transcribe.temperature"); err == nil {
		return float32(temperature)
	}
	return 0
}

type whisperSpeechToText struct {
	logger commons.Logger
	client *openai.Client
	opts   *whisperOption
}

// Name implements internal_type.SpeechToText.
func (*whisperSpeechToText) Name() string {
	return "whisper-speech-to-text"
}

// NewWhisperSpeechToText builds a Whisper-backed provider on the OpenAI
// audio transcription endpoint. mdlOpts carries the model options
// ("transcribe.language", "transcribe.temperature").
func NewWhisperSpeechToText(logger commons.Logger, key string, mdlOpts utils.Option) (internal_type.SpeechToText, error) {
	if utils.IsEmpty(key) {
		return nil, fmt.Errorf("whisper-stt: api key is required")
	}
	return &whisperSpeechToText{
		logger: logger,
		client: openai.NewClient(key),
		opts:   &whisperOption{mdlOpts: mdlOpts},
	}, nil
}

// Transcribe implements internal_type.SpeechToText. verbose_json is
// requested so segments arrive with their per-segment quality signals. A
// language on the request wins over the configured default.
func (wst *whisperSpeechToText) Transcribe(ctx context.Context, audio io.Reader, filename string, opts internal_type.TranscribeOptions) (*internal_type.TranscriptResult, error) {
	language := opts.Language
	if language == "" {
		language = wst.opts.GetLanguage()
	}
	resp, err := wst.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       openai.Whisper1,
		Reader:      audio,
		FilePath:    filename,
		Format:      openai.AudioResponseFormatVerboseJSON,
		Language:    language,
		Prompt:      opts.Prompt,
		Temperature: wst.opts.GetTemperature(),
	})
	if err != nil {
		wst.logger.Errorf("whisper-stt: transcription request failed %+v", err)
		return nil, err
	}

	result := &internal_type.TranscriptResult{
		Text:        resp.Text,
		Language:    resp.Language,
		DurationSec: resp.Duration,
		Segments:    make([]internal_type.TranscriptSegment, 0, len(resp.Segments)),
	}
	for _, seg := range resp.Segments {
		result.Segments = append(result.Segments, internal_type.TranscriptSegment{
			ID:           seg.ID,
			StartSec:     seg.Start,
			EndSec:       seg.End,
			Text:         seg.Text,
			AvgLogProb:   seg.AvgLogprob,
			NoSpeechProb: seg.NoSpeechProb,
		})
	}
	return result, nil
}
