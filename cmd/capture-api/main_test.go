// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimpsehq/glimpse/config"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-main"),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

func TestSpeechModelOptionsCarryConfiguredLanguage(t *testing.T) {
	opts := speechModelOptions(config.TranscriptionConfig{Language: "de"})

	language, err := opts.GetString("transcribe.language")
	require.NoError(t, err)
	assert.Equal(t, "de", language)

	language, err = opts.GetString("listen.language")
	require.NoError(t, err)
	assert.Equal(t, "de", language)
}

func TestSpeechModelOptionsEmptyWithoutLanguage(t *testing.T) {
	opts := speechModelOptions(config.TranscriptionConfig{})
	assert.Empty(t, opts)
}

func TestNewSpeechProviderDispatch(t *testing.T) {
	logger := newTestLogger(t)

	speech, err := newSpeechProvider(logger, config.TranscriptionConfig{})
	require.NoError(t, err)
	assert.Nil(t, speech)

	speech, err = newSpeechProvider(logger, config.TranscriptionConfig{
		Provider: "whisper", OpenAIKey: "test-key", Language: "de",
	})
	require.NoError(t, err)
	require.NotNil(t, speech)
	assert.Equal(t, "whisper-speech-to-text", speech.Name())

	speech, err = newSpeechProvider(logger, config.TranscriptionConfig{
		Provider: "deepgram", DeepgramKey: "test-key",
	})
	require.NoError(t, err)
	require.NotNil(t, speech)
	assert.Equal(t, "deepgram-speech-to-text", speech.Name())

	_, err = newSpeechProvider(logger, config.TranscriptionConfig{Provider: "parakeet"})
	assert.Error(t, err)
}
