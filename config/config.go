// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package config

import (
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AssetStoreConfig configures the object-storage provider chunks and
// artifacts are written to.
type AssetStoreConfig struct {
	Provider  string `mapstructure:"provider" validate:"required,oneof=s3 http memory"`
	Bucket    string `mapstructure:"bucket" validate:"required"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	// GatewayURL is the base URL of the HTTP storage gateway (provider=http).
	GatewayURL string `mapstructure:"gateway_url"`
}

// TranscriptionConfig configures the speech-to-text provider. An empty
// provider leaves transcription unconfigured; requests then fail with the
// unavailable error rather than a request-level failure.
type TranscriptionConfig struct {
	Provider    string `mapstructure:"provider" validate:"omitempty,oneof=whisper deepgram"`
	OpenAIKey   string `mapstructure:"openai_key"`
	DeepgramKey string `mapstructure:"deepgram_key"`
	Language    string `mapstructure:"language"`
}

// Application config structure
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Version  string `mapstructure:"version" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	// Capture defaults; callers may override the interval per session.
	ChunkIntervalMs int `mapstructure:"chunk_interval_ms" validate:"required,min=250"`

	// Upload retry policy for a single chunk.
	UploadMaxAttempts    int `mapstructure:"upload_max_attempts" validate:"required,min=1"`
	UploadBackoffInitMs  int `mapstructure:"upload_backoff_init_ms" validate:"required,min=1"`
	SignedURLTTLSeconds  int `mapstructure:"signed_url_ttl_seconds" validate:"required,min=1"`

	AssetStoreConfig    AssetStoreConfig    `mapstructure:"asset_store" validate:"required"`
	TranscriptionConfig TranscriptionConfig `mapstructure:"transcription"`
}

// reading config and intializing configs for application
func InitConfig() (*viper.Viper, error) {
	vConfig := viper.NewWithOptions(viper.KeyDelimiter("__"))

	vConfig.AddConfigPath(".")
	vConfig.SetConfigName(".env")
	path := os.Getenv("ENV_PATH")
	if path != "" {
		log.Printf("env path %v", path)
		vConfig.SetConfigFile(path)
	}
	vConfig.SetConfigType("env")
	vConfig.AutomaticEnv()

	setDefault(vConfig)
	if err := vConfig.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		log.Printf("Reading from env variables.")
	}

	return vConfig, nil
}

func setDefault(v *viper.Viper) {
	// setting all default values
	// keeping watch on https://github.com/spf13/viper/issues/188

	v.SetDefault("SERVICE_NAME", "glimpse-capture")
	v.SetDefault("VERSION", "0.0.1")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 9090)
	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_PATH", "")

	v.SetDefault("CHUNK_INTERVAL_MS", 10000)
	v.SetDefault("UPLOAD_MAX_ATTEMPTS", 4)
	v.SetDefault("UPLOAD_BACKOFF_INIT_MS", 500)
	v.SetDefault("SIGNED_URL_TTL_SECONDS", 900)

	v.SetDefault("ASSET_STORE__PROVIDER", "memory")
	v.SetDefault("ASSET_STORE__BUCKET", "glimpse-recordings")
	v.SetDefault("ASSET_STORE__REGION", "us-east-1")
	v.SetDefault("ASSET_STORE__ENDPOINT", "")
	v.SetDefault("ASSET_STORE__ACCESS_KEY", "")
	v.SetDefault("ASSET_STORE__SECRET_KEY", "")
	v.SetDefault("ASSET_STORE__GATEWAY_URL", "")

	v.SetDefault("TRANSCRIPTION__PROVIDER", "")
	v.SetDefault("TRANSCRIPTION__OPENAI_KEY", "")
	v.SetDefault("TRANSCRIPTION__DEEPGRAM_KEY", "")
	v.SetDefault("TRANSCRIPTION__LANGUAGE", "")
}

// Getting application config from viper
func GetApplicationConfig(v *viper.Viper) (*AppConfig, error) {
	var config AppConfig
	err := v.Unmarshal(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}

	// valdating the app config
	validate := validator.New()
	err = validate.Struct(&config)
	if err != nil {
		log.Printf("%+v\n", err)
		return nil, err
	}
	return &config, nil
}
