// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_transcription_deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
	"github.com/glimpsehq/glimpse/pkg/utils"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-deepgram"),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

const listenResponse = `{
  "metadata": {"duration": 9.25},
  "results": {
    "channels": [
      {
        "detected_language": "en",
        "alternatives": [
          {
            "transcript": "Welcome to the usability session. Please share your screen.",
            "confidence": 0.985
          }
        ]
      }
    ],
    "utterances": [
      {"start": 0.0, "end": 4.5, "confidence": 0.99, "transcript": "Welcome to the usability session."},
      {"start": 4.5, "end": 9.25, "confidence": 0.97, "transcript": "Please share your screen."}
    ]
  }
}`

func newDeepgramAgainst(t *testing.T, mdlOpts utils.Option, handler http.HandlerFunc) (internal_type.SpeechToText, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := resty.New().
		SetBaseURL(server.URL).
		SetHeader("Authorization", "Token test-key").
		SetTimeout(5 * time.Second)
	return &deepgramSpeechToText{
		logger: newTestLogger(t),
		client: client,
		opts:   &deepgramOption{mdlOpts: mdlOpts},
	}, server.Close
}

func TestDeepgramTranscribeMapsUtterances(t *testing.T) {
	provider, done := newDeepgramAgainst(t, nil, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/listen", r.URL.Path)
		assert.Equal(t, "Token test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("utterances"))
		assert.Equal(t, MODEL, r.URL.Query().Get("model"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listenResponse))
	})
	defer done()

	result, err := provider.Transcribe(context.Background(),
		strings.NewReader("fake-wav-bytes"), "session.wav",
		internal_type.TranscribeOptions{Language: "en"})
	require.NoError(t, err)

	assert.Equal(t, "Welcome to the usability session. Please share your screen.", result.Text)
	assert.Equal(t, "en", result.Language)
	assert.Equal(t, 9.25, result.DurationSec)
	require.Len(t, result.Segments, 2)

	second := result.Segments[1]
	assert.Equal(t, 1, second.ID)
	assert.Equal(t, 4.5, second.StartSec)
	assert.Equal(t, 9.25, second.EndSec)
	assert.Equal(t, "Please share your screen.", second.Text)
	assert.Equal(t, 0.97, second.Confidence)
	assert.Zero(t, second.AvgLogProb, "deepgram reports confidence, not log probabilities")
}

func TestDeepgramModelOptionsApply(t *testing.T) {
	mdlOpts := utils.Option{
		"listen.model":    "nova-3",
		"listen.language": "hi",
		"listen.keywords": []string{"glimpse", "usability"},
	}
	provider, done := newDeepgramAgainst(t, mdlOpts, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "nova-3", q.Get("model"))
		// no language on the request, the configured default applies
		assert.Equal(t, "hi", q.Get("language"))
		// boost terms arrive as repeated keywords params, prompt last
		assert.Equal(t, []string{"glimpse", "usability", "export button"}, q["keywords"])
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listenResponse))
	})
	defer done()

	_, err := provider.Transcribe(context.Background(),
		strings.NewReader("fake-wav-bytes"), "session.wav",
		internal_type.TranscribeOptions{Prompt: "export button"})
	require.NoError(t, err)
}

func TestDeepgramRequestLanguageWinsOverConfigured(t *testing.T) {
	mdlOpts := utils.Option{"listen.language": "hi"}
	provider, done := newDeepgramAgainst(t, mdlOpts, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fr", r.URL.Query().Get("language"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listenResponse))
	})
	defer done()

	_, err := provider.Transcribe(context.Background(),
		strings.NewReader("fake-wav-bytes"), "session.wav",
		internal_type.TranscribeOptions{Language: "fr"})
	require.NoError(t, err)
}

func TestDeepgramTranscribeSurfacesAPIError(t *testing.T) {
	provider, done := newDeepgramAgainst(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"err_code":"INVALID_AUDIO"}`))
	})
	defer done()

	_, err := provider.Transcribe(context.Background(),
		strings.NewReader("not-audio"), "session.wav", internal_type.TranscribeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestDeepgramTranscribeRejectsEmptyResponse(t *testing.T) {
	provider, done := newDeepgramAgainst(t, nil, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"metadata":{"duration":0},"results":{"channels":[]}}`))
	})
	defer done()

	_, err := provider.Transcribe(context.Background(),
		strings.NewReader("fake-wav-bytes"), "session.wav", internal_type.TranscribeOptions{})
	assert.Error(t, err)
}

func TestNewDeepgramSpeechToTextRequiresKey(t *testing.T) {
	_, err := NewDeepgramSpeechToText(newTestLogger(t), "", nil)
	assert.Error(t, err)
}
