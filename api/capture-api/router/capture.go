// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package capture_routers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	captureApi "github.com/glimpsehq/glimpse/api/capture-api/capture"
	"github.com/glimpsehq/glimpse/config"
	internal_session "github.com/glimpsehq/glimpse/internal/session"
	internal_transcription "github.com/glimpsehq/glimpse/internal/transcription"
	internal_uploader "github.com/glimpsehq/glimpse/internal/uploader"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

func CaptureApiRoutes(
	cfg *config.AppConfig,
	engine *gin.Engine,
	logger commons.Logger,
	manager *internal_session.Manager,
	uploader *internal_uploader.Uploader,
	transcription *internal_transcription.Service,
) *captureApi.CaptureApi {
	cApi := captureApi.NewCaptureApi(cfg, logger, manager, uploader, transcription)
	apiv1 := engine.Group("v1/sessions")
	{
		apiv1.POST("", cApi.CreateSession)
		apiv1.GET("/:sessionId", cApi.GetSession)
		apiv1.POST("/:sessionId/pause", cApi.PauseSession)
		apiv1.POST("/:sessionId/resume", cApi.ResumeSession)
		apiv1.POST("/:sessionId/stop", cApi.StopSession)
		apiv1.POST("/:sessionId/replace-video", cApi.ReplaceVideo)
		apiv1.GET("/:sessionId/ingest", cApi.IngestSession)

		apiv1.GET("/:sessionId/artifact/url", cApi.SignedArtifactURL)
		apiv1.DELETE("/:sessionId/artifact", cApi.DeleteArtifact)

		apiv1.POST("/:sessionId/transcript", cApi.TranscribeSession)
		apiv1.GET("/:sessionId/transcript", cApi.GetTranscript)
		apiv1.GET("/:sessionId/transcript/subtitle", cApi.SubtitleExport)
		apiv1.GET("/:sessionId/transcript/search", cApi.SearchTranscript)
		apiv1.GET("/:sessionId/transcript/excerpt", cApi.TranscriptExcerpt)
	}
	return cApi
}

func HealthCheckRoutes(cfg *config.AppConfig, engine *gin.Engine, logger commons.Logger) {
	logger.Info("Internal HealthCheckRoutes added to engine.")
	apiv1 := engine.Group("")
	{
		apiv1.GET("/healthz/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"service": cfg.Name,
				"version": cfg.Version,
			})
		})
		apiv1.GET("/readiness/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ready"})
		})
	}
}
