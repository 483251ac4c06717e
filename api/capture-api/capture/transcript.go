// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package capture_api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	internal_transcription "github.com/glimpsehq/glimpse/internal/transcription"
	internal_type "github.com/glimpsehq/glimpse/internal/type"
)

// TranscribeSession runs speech-to-text on the uploaded session audio and
// caches the result for the subtitle, search and excerpt endpoints. The
// audio arrives as multipart form field "audio"; "language" and "prompt"
// are optional form fields.
func (cApi *CaptureApi) TranscribeSession(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'audio' is required"})
		return
	}
	defer file.Close()

	result, err := cApi.transcription.Transcribe(c.Request.Context(), file, header.Filename,
		internal_type.TranscribeOptions{
			Language: c.PostForm("language"),
			Prompt:   c.PostForm("prompt"),
		})
	if err != nil {
		cApi.respondError(c, err)
		return
	}

	sessionID := ctrl.Session().ID
	cApi.mu.Lock()
	cApi.transcripts[sessionID] = result
	cApi.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"transcript": result})
}

// GetTranscript returns the cached transcription result.
func (cApi *CaptureApi) GetTranscript(c *gin.Context) {
	result, ok := cApi.cachedTranscript(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"transcript": result})
}

// SubtitleExport renders the cached transcript as SRT or WebVTT.
func (cApi *CaptureApi) SubtitleExport(c *gin.Context) {
	result, ok := cApi.cachedTranscript(c)
	if !ok {
		return
	}
	format, err := internal_transcription.ParseSubtitleFormat(c.DefaultQuery("format", "srt"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contentType := "application/x-subrip"
	if format == internal_transcription.FormatVTT {
		contentType = "text/vtt"
	}
	c.Data(http.StatusOK, contentType, []byte(internal_transcription.ToSubtitle(result.Segments, format)))
}

// SearchTranscript returns the segments containing the query text.
func (cApi *CaptureApi) SearchTranscript(c *gin.Context) {
	result, ok := cApi.cachedTranscript(c)
	if !ok {
		return
	}
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"segments": internal_transcription.Search(result.Segments, query)})
}

// TranscriptExcerpt returns the segments overlapping a window around a
// timestamp, for jumping to a moment in the recording.
func (cApi *CaptureApi) TranscriptExcerpt(c *gin.Context) {
	result, ok := cApi.cachedTranscript(c)
	if !ok {
		return
	}
	ts, err := strconv.ParseFloat(c.Query("ts"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'ts' must be a number of seconds"})
		return
	}
	window := 30.0
	if raw := c.Query("window"); raw != "" {
		window, err = strconv.ParseFloat(raw, 64)
		if err != nil || window < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'window' must be a non-negative number"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"segments": internal_transcription.ExcerptAround(result.Segments, ts, window)})
}

func (cApi *CaptureApi) cachedTranscript(c *gin.Context) (*internal_type.TranscriptResult, bool) {
	if _, err := cApi.manager.Get(c.Param("sessionId")); err != nil {
		cApi.respondError(c, err)
		return nil, false
	}
	cApi.mu.Lock()
	result, ok := cApi.transcripts[c.Param("sessionId")]
	cApi.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no transcript for session, run transcription first"})
		return nil, false
	}
	return result, true
}
