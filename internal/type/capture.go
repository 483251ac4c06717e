// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_type

import (
	"context"
	"fmt"
	"time"
)

// Mode selects what a capture session records.
type Mode string

const (
	ModeCamera   Mode = "camera"
	ModeScreen   Mode = "screen"
	ModeCombined Mode = "combined" // screen video + camera/mic audio in one handle
)

// ParseMode validates a wire-level mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeCamera, ModeScreen, ModeCombined:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

// Constraints narrow device selection and stream geometry.
type Constraints struct {
	VideoDevice string
	AudioDevice string
	Width       int
	Height      int
	FrameRate   int
	// Surface labels which screen surface is shared (monitor/window/tab).
	Surface string
}

// StreamInfo reports the active stream's technical settings.
type StreamInfo struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FrameRate int    `json:"frameRate"`
	Surface   string `json:"surface,omitempty"`
}

// MediaPacket is one opaque slice of encoded media read off the source.
type MediaPacket struct {
	Data       []byte
	ReceivedAt time.Time
}

// CaptureSource is a live media stream. Exactly one controller owns a
// source at a time; ReplaceVideo is the only sanctioned in-place mutation.
type CaptureSource interface {
	// Packets delivers media as it arrives. The channel is closed when the
	// source is released or its producer ends.
	Packets() <-chan MediaPacket

	// Info returns the active stream settings, or nil when not capturing.
	Info() *StreamInfo

	// ReplaceVideo atomically swaps the video producer. The replacement is
	// installed and producing before the old producer is stopped, so the
	// consumer never observes a gap.
	ReplaceVideo(ctx context.Context, next CaptureSource) error

	// Release stops all producers and frees resources. Idempotent: a
	// second call is a no-op, never an error.
	Release()
}

// AcquireFunc obtains a source; acquisition happens inside the
// controller's start so a denied permission fails the start transition.
type AcquireFunc func(ctx context.Context) (CaptureSource, error)
