// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsProduceValidConfig(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)

	cfg, err := GetApplicationConfig(v)
	require.NoError(t, err)

	assert.Equal(t, "glimpse-capture", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 10000, cfg.ChunkIntervalMs)
	assert.Equal(t, 4, cfg.UploadMaxAttempts)
	assert.Equal(t, "memory", cfg.AssetStoreConfig.Provider)
	assert.Equal(t, "glimpse-recordings", cfg.AssetStoreConfig.Bucket)
	assert.Empty(t, cfg.TranscriptionConfig.Provider)
}

func TestMissingBucketFailsValidation(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)
	v.Set("ASSET_STORE__BUCKET", "")

	_, err = GetApplicationConfig(v)
	assert.Error(t, err)
}

func TestUnknownStoreProviderFailsValidation(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)
	v.Set("ASSET_STORE__PROVIDER", "ftp")

	_, err = GetApplicationConfig(v)
	assert.Error(t, err)
}

func TestChunkIntervalBelowFloorFailsValidation(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)
	v.Set("CHUNK_INTERVAL_MS", 10)

	_, err = GetApplicationConfig(v)
	assert.Error(t, err)
}

func TestUnknownTranscriptionProviderFailsValidation(t *testing.T) {
	v, err := InitConfig()
	require.NoError(t, err)
	v.Set("TRANSCRIPTION__PROVIDER", "parakeet")

	_, err = GetApplicationConfig(v)
	assert.Error(t, err)
}
