// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package capture_api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	internal_uploader "github.com/glimpsehq/glimpse/internal/uploader"
)

// SignedArtifactURL mints a time-limited read URL for the session's
// artifact manifest, or for a single chunk when ?seq= is given.
func (cApi *CaptureApi) SignedArtifactURL(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}

	ttl := time.Duration(cApi.cfg.SignedURLTTLSeconds) * time.Second
	if raw := c.Query("ttlSeconds"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttlSeconds must be a positive integer"})
			return
		}
		ttl = time.Duration(parsed) * time.Second
	}

	key := ctrl.Target().Key
	if raw := c.Query("seq"); raw != "" {
		seq, err := strconv.Atoi(raw)
		if err != nil || seq < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "seq must be a non-negative integer"})
			return
		}
		key = internal_uploader.ChunkKey(key, seq)
	}

	url, err := cApi.uploader.SignedURL(c.Request.Context(), key, ttl)
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       url,
		"key":       key,
		"expiresIn": int64(ttl.Seconds()),
	})
}

// DeleteArtifact removes the manifest and every chunk of the session from
// storage, then drops the session from the registry. Absent objects are
// not an error.
func (cApi *CaptureApi) DeleteArtifact(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}
	sess := ctrl.Session()
	if !sess.State.Terminal() {
		cApi.respondError(c, &internal_type.InvalidStateTransitionError{Op: "deleteArtifact", State: sess.State})
		return
	}

	key := ctrl.Target().Key
	for seq := 0; seq < sess.ChunkSequenceCounter; seq++ {
		if err := cApi.uploader.Delete(c.Request.Context(), internal_uploader.ChunkKey(key, seq)); err != nil {
			cApi.respondError(c, err)
			return
		}
	}
	if err := cApi.uploader.Delete(c.Request.Context(), key); err != nil {
		cApi.respondError(c, err)
		return
	}

	cApi.manager.Remove(sess.ID)
	cApi.mu.Lock()
	delete(cApi.transcripts, sess.ID)
	cApi.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"deleted": sess.ID})
}
