// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package capture_api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	internal_capture "github.com/glimpsehq/glimpse/internal/capture"
	internal_type "github.com/glimpsehq/glimpse/internal/type"
)

var ingestUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// IngestSession upgrades to a websocket and starts the session with the
// connection as its capture source. Binary frames are media; text frames
// update the stream info. Recording ends when the producer disconnects or
// the session is stopped, whichever comes first.
func (cApi *CaptureApi) IngestSession(c *gin.Context) {
	ctrl, err := cApi.manager.Get(c.Param("sessionId"))
	if err != nil {
		cApi.respondError(c, err)
		return
	}

	interval := cApi.cfg.ChunkIntervalMs
	if raw := c.Query("chunkIntervalMs"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "chunkIntervalMs must be a positive integer"})
			return
		}
		interval = parsed
	}

	conn, err := ingestUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cApi.logger.Errorf("ingest upgrade failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to upgrade to websocket"})
		return
	}

	acquire := func(ctx context.Context) (internal_type.CaptureSource, error) {
		return internal_capture.NewWebsocketSource(cApi.logger, conn, nil), nil
	}
	// the source outlives this request; acquisition must not be tied to
	// the upgrade request's context
	if err := ctrl.Start(context.Background(), acquire, interval); err != nil {
		cApi.logger.Errorf("ingest start rejected for %s: %v", ctrl.Session().ID, err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		conn.Close()
		return
	}
	cApi.logger.Infow("ingest producer connected",
		"session", ctrl.Session().ID, "interval_ms", interval)
}
