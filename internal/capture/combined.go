// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_capture

import (
	"context"
	"fmt"
	"sync"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

// combinedSource merges screen video and microphone audio into one logical
// stream. The two underlying acquisitions are exclusively owned and jointly
// released; compositing is a plumbing concern, not a separate ownership
// structure.
type combinedSource struct {
	baseSource
	logger commons.Logger

	videoMu sync.Mutex
	video   internal_type.CaptureSource
}

// NewCombinedSource takes ownership of both legs.
func NewCombinedSource(logger commons.Logger, video, audio internal_type.CaptureSource) internal_type.CaptureSource {
	src := &combinedSource{
		baseSource: newBaseSource(video.Info()),
		logger:     logger,
		video:      video,
	}
	src.adopt(video)
	src.adopt(audio)
	return src
}

func (c *combinedSource) Info() *internal_type.StreamInfo {
	c.videoMu.Lock()
	video := c.video
	c.videoMu.Unlock()
	if video != nil {
		if info := video.Info(); info != nil {
			return info
		}
	}
	return c.baseSource.Info()
}

// ReplaceVideo swaps only the video leg; the audio leg keeps flowing.
func (c *combinedSource) ReplaceVideo(ctx context.Context, next internal_type.CaptureSource) error {
	if c.released() {
		return fmt.Errorf("%w: source already released", internal_type.ErrDeviceUnavailable)
	}
	c.adopt(next)

	c.videoMu.Lock()
	old := c.video
	c.video = next
	c.videoMu.Unlock()

	if old != nil {
		old.Release()
	}
	return nil
}

func (c *combinedSource) Release() { c.release() }
