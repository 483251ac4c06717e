// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	captureRouters "github.com/glimpsehq/glimpse/api/capture-api/router"
	"github.com/glimpsehq/glimpse/config"
	internal_session "github.com/glimpsehq/glimpse/internal/session"
	internal_store "github.com/glimpsehq/glimpse/internal/store"
	internal_transcription "github.com/glimpsehq/glimpse/internal/transcription"
	internal_transcription_deepgram "github.com/glimpsehq/glimpse/internal/transcription/deepgram"
	internal_transcription_whisper "github.com/glimpsehq/glimpse/internal/transcription/whisper"
	internal_type "github.com/glimpsehq/glimpse/internal/type"
	internal_uploader "github.com/glimpsehq/glimpse/internal/uploader"
	"github.com/glimpsehq/glimpse/pkg/commons"
	"github.com/glimpsehq/glimpse/pkg/utils"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("capture-api: %+v", err)
	}
}

func run() error {
	vConfig, err := config.InitConfig()
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		return fmt.Errorf("loading application config: %w", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
	)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()

	store, err := newAssetStore(logger, cfg.AssetStoreConfig)
	if err != nil {
		return err
	}

	uploader := internal_uploader.NewUploader(logger, store,
		internal_uploader.WithMaxAttempts(cfg.UploadMaxAttempts),
		internal_uploader.WithInitialBackoff(time.Duration(cfg.UploadBackoffInitMs)*time.Millisecond),
	)
	manager := internal_session.NewManager(logger, uploader, uploader,
		cfg.AssetStoreConfig.Bucket, store.Provider())
	// the uploader warns the owning controller when a chunk exhausts its
	// retries mid-session
	uploader.SetFailureNotifier(manager)

	speech, err := newSpeechProvider(logger, cfg.TranscriptionConfig)
	if err != nil {
		return err
	}
	transcription := internal_transcription.NewService(logger, speech)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	captureRouters.HealthCheckRoutes(cfg, engine, logger)
	captureRouters.CaptureApiRoutes(cfg, engine, logger, manager, uploader, transcription)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infow("capture-api listening",
			"addr", server.Addr, "store", store.Provider(), "version", cfg.Version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

func newAssetStore(logger commons.Logger, cfg config.AssetStoreConfig) (internal_type.ObjectStore, error) {
	switch cfg.Provider {
	case "s3":
		return internal_store.NewS3Store(logger, cfg)
	case "http":
		return internal_store.NewHTTPStore(logger, cfg)
	case "memory":
		logger.Warnw("using in-memory asset store, recordings will not survive a restart")
		return internal_store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown asset store provider %q", cfg.Provider)
	}
}

// speechModelOptions turns the transcription config into the provider
// option bag. The configured language is the fallback hint; a language on
// the transcription request still wins.
func speechModelOptions(cfg config.TranscriptionConfig) utils.Option {
	mdlOpts := utils.Option{}
	if !utils.IsEmpty(cfg.Language) {
		mdlOpts["transcribe.language"] = cfg.Language
		mdlOpts["listen.language"] = cfg.Language
	}
	return mdlOpts
}

func newSpeechProvider(logger commons.Logger, cfg config.TranscriptionConfig) (internal_type.SpeechToText, error) {
	mdlOpts := speechModelOptions(cfg)
	switch cfg.Provider {
	case "":
		logger.Info("no transcription provider configured")
		return nil, nil
	case "whisper":
		return internal_transcription_whisper.NewWhisperSpeechToText(logger, cfg.OpenAIKey, mdlOpts)
	case "deepgram":
		return internal_transcription_deepgram.NewDeepgramSpeechToText(logger, cfg.DeepgramKey, mdlOpts)
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", cfg.Provider)
	}
}
