// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_capture

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

// websocketSource ingests media pushed by a remote browser: binary frames
// carry MediaRecorder blobs, text frames carry JSON stream-info updates
// (the browser reports its active track settings).
type websocketSource struct {
	baseSource
	logger commons.Logger

	connMu sync.Mutex
	conn   *websocket.Conn
}

// NewWebsocketSource wraps an already-upgraded connection. The source owns
// the connection and closes it on Release.
func NewWebsocketSource(logger commons.Logger, conn *websocket.Conn, info *internal_type.StreamInfo) internal_type.CaptureSource {
	src := &websocketSource{
		baseSource: newBaseSource(info),
		logger:     logger,
		conn:       conn,
	}
	src.addStop(src.closeConn)
	src.runProducer(src.readLoop)
	return src
}

func (w *websocketSource) readLoop() {
	for {
		msgType, data, err := w.conn.ReadMessage()
		if err != nil {
			if !w.released() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				w.logger.Warnf("ingest websocket closed: %v", err)
			}
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			if len(data) == 0 {
				continue
			}
			if !w.push(internal_type.MediaPacket{Data: data, ReceivedAt: time.Now()}) {
				return
			}
		case websocket.TextMessage:
			var info internal_type.StreamInfo
			if err := json.Unmarshal(data, &info); err != nil {
				w.logger.Debugf("ignoring malformed stream info: %v", err)
				continue
			}
			w.setInfo(&info)
		}
	}
}

func (w *websocketSource) closeConn() {
	w.connMu.Lock()
	defer w.connMu.Unlock()
	w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	w.conn.Close()
}

// ReplaceVideo swaps to a new ingest stream (the participant switched the
// shared window and the browser reconnected). The new stream is adopted
// before the old connection is closed.
func (w *websocketSource) ReplaceVideo(ctx context.Context, next internal_type.CaptureSource) error {
	if w.released() {
		return fmt.Errorf("%w: source already released", internal_type.ErrDeviceUnavailable)
	}
	w.adopt(next)
	if info := next.Info(); info != nil {
		w.setInfo(info)
	}
	w.closeConn()
	return nil
}

func (w *websocketSource) Release() { w.release() }
