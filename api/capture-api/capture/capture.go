// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package capture_api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/glimpsehq/glimpse/config"
	internal_capture "github.com/glimpsehq/glimpse/internal/capture"
	internal_session "github.com/glimpsehq/glimpse/internal/session"
	internal_transcription "github.com/glimpsehq/glimpse/internal/transcription"
	internal_type "github.com/glimpsehq/glimpse/internal/type"
	internal_uploader "github.com/glimpsehq/glimpse/internal/uploader"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

// acquirer abstracts device acquisition so tests can stub the media layer.
type acquirer func(ctx context.Context, logger commons.Logger, mode internal_type.Mode, c internal_type.Constraints) (internal_type.CaptureSource, error)

// CaptureApi is the HTTP surface over sessions, artifacts and transcripts.
type CaptureApi struct {
	cfg           *config.AppConfig
	logger        commons.Logger
	manager       *internal_session.Manager
	uploader      *internal_uploader.Uploader
	transcription *internal_transcription.Service
	acquire       acquirer

	// transcripts caches the session's last transcription result so the
	// subtitle/search/excerpt endpoints can serve it without re-running
	// speech-to-text.
	mu          sync.Mutex
	transcripts map[string]*internal_type.TranscriptResult
}

func NewCaptureApi(
	cfg *config.AppConfig,
	logger commons.Logger,
	manager *internal_session.Manager,
	uploader *internal_uploader.Uploader,
	transcription *internal_transcription.Service,
) *CaptureApi {
	return &CaptureApi{
		cfg:           cfg,
		logger:        logger,
		manager:       manager,
		uploader:      uploader,
		transcription: transcription,
		acquire:       internal_capture.Acquire,
		transcripts:   make(map[string]*internal_type.TranscriptResult),
	}
}

type createSessionRequest struct {
	Mode            string `json:"mode" binding:"required"`
	ChunkIntervalMs int    `json:"chunkIntervalMs"`
	// Ingest delays the start until a websocket producer connects to the
	// session's ingest endpoint; without it the session records from host
	// devices immediately.
	Ingest      bool   `json:"ingest"`
	VideoDevice string `json:"videoDevice"`
	AudioDevice string `json:"audioDevice"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FrameRate   int    `json:"frameRate"`
	Surface     string `json:"surface"`
}

func (r *createSessionRequest) constraints() internal_type.Constraints {
	return internal_type.Constraints{
		VideoDevice: r.VideoDevice,
		AudioDevice: r.AudioDevice,
		Width:       r.Width,
		Height:      r.Height,
		FrameRate:   r.FrameRate,
		Surface:     r.Surface,
	}
}

type sessionResponse struct {
	internal_type.CaptureSession
	Target internal_type.UploadTarget       `json:"target"`
	Info   *internal_type.StreamInfo        `json:"streamInfo,omitempty"`
	Chunks []internal_uploader.UploadRecord `json:"chunks,omitempty"`
	Events []sessionEvent                   `json:"events,omitempty"`
}

// sessionEvent is the wire view of a lifecycle event. The raw error is
// flattened to a string so the payload stays JSON-friendly.
type sessionEvent struct {
	Kind          internal_type.EventKind `json:"kind"`
	At            time.Time               `json:"at"`
	SequenceIndex *int                    `json:"sequenceIndex,omitempty"`
	Error         string                  `json:"error,omitempty"`
}

func sessionEvents(evs []internal_type.Event) []sessionEvent {
	if len(evs) == 0 {
		return nil
	}
	out := make([]sessionEvent, 0, len(evs))
	for _, ev := range evs {
		view := sessionEvent{Kind: ev.Kind, At: ev.At}
		if ev.Chunk != nil {
			seq := ev.Chunk.SequenceIndex
			view.SequenceIndex = &seq
		}
		if ev.Err != nil {
			view.Error = ev.Err.Error()
			var failed *internal_type.ChunkUploadFailedError
			if errors.As(ev.Err, &failed) {
				seq := failed.SequenceIndex
				view.SequenceIndex = &seq
			}
		}
		out = append(out, view)
	}
	return out
}

func (cApi *CaptureApi) sessionResponse(ctrl *internal_session.Controller) sessionResponse {
	id := ctrl.Session().ID
	return sessionResponse{
		CaptureSession: ctrl.Session(),
		Target:         ctrl.Target(),
		Info:           ctrl.SourceInfo(),
		Chunks:         cApi.uploader.Records(id),
		Events:         sessionEvents(cApi.manager.Events(id)),
	}
}

// CreateSession registers a session and, unless ingest is requested,
// starts recording from host devices right away.
func (cApi *CaptureApi) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := internal_type.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	interval := req.ChunkIntervalMs
	if interval <= 0 {
		interval = cApi.cfg.ChunkIntervalMs
	}

	ctrl := cApi.manager.Create(mode)
	if req.Ingest {
		c.JSON(http.StatusCreated, gin.H{
			"session": cApi.sessionResponse(ctrl),
			"ingest":  "/v1/sessions/" + ctrl.Session().ID + "/ingest",
		})
		return
	}

	constraints := req.constraints()
	acquire := func(ctx context.Context) (internal_type.CaptureSource, error) {
		return cApi.acquire(ctx, cApi.logger, mode, constraints)
	}
	if err := ctrl.Start(c.Request.Context(), acquire, interval); err != nil {
		cApi.manager.Remove(ctrl.Session().ID)
		cApi.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": cApi.sessionResponse(ctrl)})
}

// GetSession reports the live (or terminal) session snapshot with its
// per-chunk upload bookkeeping.
func (cApi *CaptureApi) GetSession(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": cApi.sessionResponse(ctrl)})
}

// PauseSession suspends chunk production without releasing the source.
func (cApi *CaptureApi) PauseSession(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	if err := ctrl.Pause(); err != nil {
		cApi.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": cApi.sessionResponse(ctrl)})
}

// ResumeSession continues a paused recording.
func (cApi *CaptureApi) ResumeSession(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	if err := ctrl.Resume(); err != nil {
		cApi.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": cApi.sessionResponse(ctrl)})
}

// StopSession finishes the recording and resolves with the stored
// artifact once every chunk upload has settled.
func (cApi *CaptureApi) StopSession(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	result, err := ctrl.Stop(c.Request.Context())
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":    cApi.sessionResponse(ctrl),
		"artifact":   result.Artifact,
		"durationMs": result.DurationMs,
	})
}

type replaceVideoRequest struct {
	Mode        string `json:"mode" binding:"required"`
	VideoDevice string `json:"videoDevice"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FrameRate   int    `json:"frameRate"`
	Surface     string `json:"surface"`
}

// ReplaceVideo swaps the video leg mid-session, e.g. when a participant
// re-picks the shared screen. Audio continuity is preserved.
func (cApi *CaptureApi) ReplaceVideo(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	var req replaceVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := internal_type.ParseMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	next, err := cApi.acquire(c.Request.Context(), cApi.logger, mode, internal_type.Constraints{
		VideoDevice: req.VideoDevice,
		Width:       req.Width,
		Height:      req.Height,
		FrameRate:   req.FrameRate,
		Surface:     req.Surface,
	})
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	if err := ctrl.ReplaceVideo(c.Request.Context(), next); err != nil {
		next.Release()
		cApi.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": cApi.sessionResponse(ctrl)})
}

// respondError maps domain errors onto transport status codes.
func (cApi *CaptureApi) respondError(c *gin.Context, err error) {
	var invalid *internal_type.InvalidStateTransitionError
	var incomplete *internal_type.IncompleteUploadError
	var failed *internal_type.TranscriptionFailedError
	switch {
	case errors.Is(err, internal_type.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, internal_type.ErrUnsupportedMode):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, internal_type.ErrDeviceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, internal_type.ErrTranscriptionUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.As(err, &failed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &incomplete):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   err.Error(),
			"missing": incomplete.Missing,
		})
	default:
		cApi.logger.Errorf("unhandled api error: %+v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
