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

const packetChannelSize = 256

// ============================================================================
// baseSource — shared producer/channel plumbing
// ============================================================================

// baseSource owns the outbound packet channel every concrete source
// (ffmpeg, websocket, combined) shares. Producers push packets through it;
// Release stops all producers, then closes the channel once they drain.
type baseSource struct {
	mu   sync.Mutex
	out  chan internal_type.MediaPacket
	done chan struct{}
	wg   sync.WaitGroup

	releaseOnce sync.Once
	info        *internal_type.StreamInfo

	// stopFns stop individual producers (kill a process, close a conn,
	// release an adopted source). Run once, on release.
	stopFns []func()
}

func newBaseSource(info *internal_type.StreamInfo) baseSource {
	return baseSource{
		out:  make(chan internal_type.MediaPacket, packetChannelSize),
		done: make(chan struct{}),
		info: info,
	}
}

func (b *baseSource) Packets() <-chan internal_type.MediaPacket { return b.out }

func (b *baseSource) Info() *internal_type.StreamInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.info == nil {
		return nil
	}
	cp := *b.info
	return &cp
}

func (b *baseSource) setInfo(info *internal_type.StreamInfo) {
	b.mu.Lock()
	b.info = info
	b.mu.Unlock()
}

// push delivers a packet unless the source has been released. The send
// blocks when the consumer lags; dropping media would open a gap in the
// recording.
func (b *baseSource) push(p internal_type.MediaPacket) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.out <- p:
		return true
	case <-b.done:
		return false
	}
}

// runProducer tracks a producer goroutine so release can wait for it
// before closing the packet channel.
func (b *baseSource) runProducer(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

func (b *baseSource) addStop(fn func()) {
	b.mu.Lock()
	b.stopFns = append(b.stopFns, fn)
	b.mu.Unlock()
}

// adopt wires another source's packets into this source's channel and ties
// its lifetime to ours. Used by ReplaceVideo and by the combined source.
func (b *baseSource) adopt(next internal_type.CaptureSource) {
	b.addStop(next.Release)
	b.runProducer(func() {
		for pkt := range next.Packets() {
			if !b.push(pkt) {
				return
			}
		}
	})
}

// release is idempotent: the first call stops all producers and arranges
// for the packet channel to close once they exit.
func (b *baseSource) release() {
	b.releaseOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		stops := append([]func(){}, b.stopFns...)
		b.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
		go func() {
			b.wg.Wait()
			close(b.out)
		}()
	})
}

func (b *baseSource) released() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// ============================================================================
// Acquire — mode dispatch
// ============================================================================

// Acquire obtains a live source for the requested mode from the host's
// devices. Combined mode merges a screen video acquisition and a
// microphone acquisition into one jointly-owned, jointly-released handle.
func Acquire(ctx context.Context, logger commons.Logger, mode internal_type.Mode, c internal_type.Constraints) (internal_type.CaptureSource, error) {
	switch mode {
	case internal_type.ModeCamera:
		return acquireFFmpeg(ctx, logger, internal_type.ModeCamera, c, true)
	case internal_type.ModeScreen:
		return acquireFFmpeg(ctx, logger, internal_type.ModeScreen, c, false)
	case internal_type.ModeCombined:
		video, err := acquireFFmpeg(ctx, logger, internal_type.ModeScreen, c, false)
		if err != nil {
			return nil, err
		}
		audio, err := acquireAudioOnly(ctx, logger, c)
		if err != nil {
			// joint ownership: never leak the half that did acquire
			video.Release()
			return nil, err
		}
		return NewCombinedSource(logger, video, audio), nil
	}
	return nil, fmt.Errorf("%w: %q", internal_type.ErrUnsupportedMode, mode)
}
