// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

const (
	ffmpegReadSize = 32 * 1024
	// acquireProbe bounds how long Acquire waits to distinguish "device
	// denied/missing" (fast ffmpeg exit) from a healthy but quiet stream.
	acquireProbe = 2 * time.Second
)

// ffmpegSource captures a device or screen by driving an ffmpeg child
// process and reading muxed output from its stdout pipe.
type ffmpegSource struct {
	baseSource
	logger commons.Logger

	procMu   sync.Mutex
	cancel   context.CancelFunc
	procDone chan struct{}
}

func defaultedConstraints(c internal_type.Constraints) internal_type.Constraints {
	if c.Width == 0 {
		c.Width = 1280
	}
	if c.Height == 0 {
		c.Height = 720
	}
	if c.FrameRate == 0 {
		c.FrameRate = 30
	}
	if c.VideoDevice == "" {
		c.VideoDevice = "/dev/video0"
	}
	if c.AudioDevice == "" {
		c.AudioDevice = "default"
	}
	return c
}

func ffmpegArgs(mode internal_type.Mode, c internal_type.Constraints, withAudio bool) []string {
	size := fmt.Sprintf("%dx%d", c.Width, c.Height)
	rate := fmt.Sprintf("%d", c.FrameRate)

	args := []string{"-hide_banner", "-loglevel", "error"}
	switch mode {
	case internal_type.ModeScreen:
		display := os.Getenv("DISPLAY")
		args = append(args,
			"-f", "x11grab",
			"-framerate", rate,
			"-video_size", size,
			"-i", display+"+0,0",
		)
	default: // camera
		args = append(args,
			"-f", "v4l2",
			"-framerate", rate,
			"-video_size", size,
			"-i", c.VideoDevice,
		)
	}
	if withAudio {
		args = append(args, "-f", "alsa", "-i", c.AudioDevice)
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-tune", "zerolatency",
	)
	if withAudio {
		args = append(args, "-c:a", "aac")
	}
	args = append(args, "-f", "matroska", "pipe:1")
	return args
}

func audioOnlyArgs(c internal_type.Constraints) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "alsa", "-i", c.AudioDevice,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "aac",
		"-f", "adts", "pipe:1",
	}
}

func acquireFFmpeg(ctx context.Context, logger commons.Logger, mode internal_type.Mode, c internal_type.Constraints, withAudio bool) (internal_type.CaptureSource, error) {
	if mode == internal_type.ModeScreen && os.Getenv("DISPLAY") == "" {
		return nil, fmt.Errorf("%w: no display to grab", internal_type.ErrUnsupportedMode)
	}
	c = defaultedConstraints(c)
	surface := c.Surface
	if mode == internal_type.ModeScreen && surface == "" {
		surface = "monitor"
	}
	info := &internal_type.StreamInfo{
		Width:     c.Width,
		Height:    c.Height,
		FrameRate: c.FrameRate,
		Surface:   surface,
	}
	return startFFmpeg(ctx, logger, ffmpegArgs(mode, c, withAudio), info)
}

// acquireAudioOnly grabs the microphone alone; used as the audio leg of a
// combined screen+mic acquisition.
func acquireAudioOnly(ctx context.Context, logger commons.Logger, c internal_type.Constraints) (internal_type.CaptureSource, error) {
	c = defaultedConstraints(c)
	return startFFmpeg(ctx, logger, audioOnlyArgs(c), nil)
}

func startFFmpeg(ctx context.Context, logger commons.Logger, args []string, info *internal_type.StreamInfo) (internal_type.CaptureSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not installed", internal_type.ErrUnsupportedMode)
	}

	procCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(procCtx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", internal_type.ErrDeviceUnavailable, err)
	}

	src := &ffmpegSource{
		baseSource: newBaseSource(info),
		logger:     logger,
		cancel:     cancel,
		procDone:   make(chan struct{}),
	}
	src.addStop(src.stopProcess)

	firstPacket := make(chan struct{})
	var firstOnce sync.Once

	go func() {
		cmd.Wait()
		close(src.procDone)
	}()

	src.runProducer(func() {
		buf := make([]byte, ffmpegReadSize)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				firstOnce.Do(func() { close(firstPacket) })
				if !src.push(internal_type.MediaPacket{Data: data, ReceivedAt: time.Now()}) {
					return
				}
			}
			if err != nil {
				if err != io.EOF && !src.released() {
					logger.Warnf("ffmpeg stdout read ended: %v", err)
				}
				return
			}
		}
	})

	// Distinguish an unusable device (ffmpeg exits immediately) from a
	// healthy acquisition.
	select {
	case <-firstPacket:
	case <-src.procDone:
		src.release()
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = "ffmpeg exited before producing media"
		}
		return nil, fmt.Errorf("%w: %s", internal_type.ErrDeviceUnavailable, detail)
	case <-time.After(acquireProbe):
		// process alive, stream just quiet so far
	case <-ctx.Done():
		src.release()
		return nil, ctx.Err()
	}

	return src, nil
}

func (f *ffmpegSource) stopProcess() {
	f.procMu.Lock()
	defer f.procMu.Unlock()
	f.cancel()
	select {
	case <-f.procDone:
	case <-time.After(3 * time.Second):
		f.logger.Warn("ffmpeg did not exit within grace period")
	}
}

// ReplaceVideo installs the replacement's packet flow before stopping the
// current process, so the consumer never sees the stream go dark between
// surfaces.
func (f *ffmpegSource) ReplaceVideo(ctx context.Context, next internal_type.CaptureSource) error {
	if f.released() {
		return fmt.Errorf("%w: source already released", internal_type.ErrDeviceUnavailable)
	}
	f.adopt(next)
	if info := next.Info(); info != nil {
		f.setInfo(info)
	}
	f.stopProcess()
	return nil
}

func (f *ffmpegSource) Release() { f.release() }
