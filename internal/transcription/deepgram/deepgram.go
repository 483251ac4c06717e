// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_transcription_deepgram

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
	"github.com/glimpsehq/glimpse/pkg/utils"
)

const (
	DEEPGRAM_URL = "https://api.deepgram.com"
	MODEL        = "nova-2"
)

type deepgramOption struct {
	mdlOpts utils.Option
}

// GetModel is the listen model, MODEL when not configured.
func (do *deepgramOption) GetModel() string {
	if model, err := do.mdlOpts.GetString("listen.model"); err == nil && model != "" {
		return model
	}
	return MODEL
}

// GetLanguage is the configured default language. Empty lets Deepgram
// detect it.
func (do *deepgramOption) GetLanguage() string {
	if language, err := do.mdlOpts.GetString("listen.language"); err == nil {
		return language
	}
	return ""
}

// GetKeywords are boost terms sent alongside every request.
func (do *deepgramOption) GetKeywords() []string {
	if keywords, err := do.mdlOpts.GetStringSlice("listen.keywords"); err == nil {
		return keywords
	}
	return nil
}

type deepgramSpeechToText struct {
	logger commons.Logger
	client *resty.Client
	opts   *deepgramOption
}

// Name implements internal_type.SpeechToText.
func (*deepgramSpeechToText) Name() string {
	return "deepgram-speech-to-text"
}

// NewDeepgramSpeechToText builds a Deepgram-backed provider on the
// pre-recorded listen endpoint. mdlOpts carries the model options
// ("listen.model", "listen.language", "listen.keywords").
func NewDeepgramSpeechToText(logger commons.Logger, key string, mdlOpts utils.Option) (internal_type.SpeechToText, error) {
	if utils.IsEmpty(key) {
		return nil, fmt.Errorf("deepgram-stt: api key is required")
	}
	client := resty.New().
		SetBaseURL(DEEPGRAM_URL).
		SetHeader("Authorization", "Token "+key).
		SetTimeout(120 * time.Second)
	return &deepgramSpeechToText{
		logger: logger,
		client: client,
		opts:   &deepgramOption{mdlOpts: mdlOpts},
	}, nil
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			DetectedLanguage string `json:"detected_language"`
			Alternatives     []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Confidence float64 `json:"confidence"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

// Transcribe implements internal_type.SpeechToText. Utterances are
// requested so the response carries timestamped spans, which map onto
// transcript segments.
func (dst *deepgramSpeechToText) Transcribe(ctx context.Context, audio io.Reader, filename string, opts internal_type.TranscribeOptions) (*internal_type.TranscriptResult, error) {
	payload, err := io.ReadAll(audio)
	if err != nil {
		return nil, fmt.Errorf("deepgram-stt: reading audio: %w", err)
	}

	query := url.Values{}
	query.Set("model", dst.opts.GetModel())
	query.Set("utterances", "true")
	query.Set("punctuate", "true")
	language := opts.Language
	if utils.IsEmpty(language) {
		language = dst.opts.GetLanguage()
	}
	if !utils.IsEmpty(language) {
		query.Set("language", language)
	}
	// Deepgram has no biasing prompt; keyword boosting is the nearest
	// equivalent. Configured boost terms apply to every request, the
	// prompt terms only to this one.
	for _, kw := range dst.opts.GetKeywords() {
		query.Add("keywords", kw)
	}
	if !utils.IsEmpty(opts.Prompt) {
		query.Add("keywords", opts.Prompt)
	}

	var out deepgramResponse
	resp, err := dst.client.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(payload).
		SetResult(&out).
		Post("/v1/listen")
	if err != nil {
		dst.logger.Errorf("deepgram-stt: transcription request failed %+v", err)
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("deepgram-stt: api returned %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		return nil, fmt.Errorf("deepgram-stt: response carried no transcription channel")
	}

	channel := out.Results.Channels[0]
	result := &internal_type.TranscriptResult{
		Text:        channel.Alternatives[0].Transcript,
		Language:    channel.DetectedLanguage,
		DurationSec: out.Metadata.Duration,
		Segments:    make([]internal_type.TranscriptSegment, 0, len(out.Results.Utterances)),
	}
	for i, u := range out.Results.Utterances {
		result.Segments = append(result.Segments, internal_type.TranscriptSegment{
			ID:         i,
			StartSec:   u.Start,
			EndSec:     u.End,
			Text:       u.Transcript,
			Confidence: u.Confidence,
		})
	}
	return result, nil
}
