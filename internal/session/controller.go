// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_session

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

// eventChannelSize buffers the gap between the capture loop and the
// manager's watcher; emit never blocks the loop on a slow consumer.
const eventChannelSize = 128

// ticker abstracts time.Ticker so boundary timing is injectable in tests.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

type tickerFactory func(time.Duration) ticker

func newRealTicker(d time.Duration) ticker {
	return realTicker{t: time.NewTicker(d)}
}

// StopResult is what Stop resolves with once finalize completes.
type StopResult struct {
	Artifact   *internal_type.Artifact `json:"artifact"`
	DurationMs int64                   `json:"durationMs"`
}

// Controller drives one capture session's state machine on top of one
// CaptureSource: it segments the live stream into timed chunks and emits
// each chunk plus lifecycle events. Chunk boundaries are a logical
// re-slicing of one continuous stream, never a stop/restart of capture.
//
// idle → recording ⇄ paused → finalizing → completed, with error reachable
// from any non-terminal state. Pause and Resume are synchronous transitions
// that never await I/O; Start and Stop are the awaited operations.
type Controller struct {
	logger    commons.Logger
	sink      internal_type.ChunkSink
	finalizer internal_type.Finalizer
	target    internal_type.UploadTarget

	mu     sync.Mutex
	sess   internal_type.CaptureSession
	source internal_type.CaptureSource

	// buffer holds media accumulated since the last boundary; it is the
	// open chunk's payload.
	buffer bytes.Buffer
	// segStart anchors the current recording stint; openDur carries the
	// open chunk's duration accrued before the stint (across pauses).
	// Wall-clock time spent paused never enters either.
	segStart    time.Time
	openDur     time.Duration
	accumulated time.Duration

	stintCancel context.CancelFunc

	events chan internal_type.Event

	// clock and newTicker are injectable for testing; they default to
	// time.Now and time.NewTicker.
	clock     func() time.Time
	newTicker tickerFactory
}

// NewController builds an idle controller for one session.
func NewController(
	logger commons.Logger,
	sessionID string,
	mode internal_type.Mode,
	target internal_type.UploadTarget,
	sink internal_type.ChunkSink,
	finalizer internal_type.Finalizer,
) *Controller {
	return &Controller{
		logger:    logger,
		sink:      sink,
		finalizer: finalizer,
		target:    target,
		sess: internal_type.CaptureSession{
			ID:    sessionID,
			Mode:  mode,
			State: internal_type.StateIdle,
		},
		events:    make(chan internal_type.Event, eventChannelSize),
		clock:     time.Now,
		newTicker: newRealTicker,
	}
}

// Events exposes the caller-facing event stream. The surrounding
// application subscribes here; it never reaches into internal state.
func (c *Controller) Events() <-chan internal_type.Event { return c.events }

// State returns the current lifecycle state.
func (c *Controller) State() internal_type.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.State
}

// Session returns a snapshot of the session record.
func (c *Controller) Session() internal_type.CaptureSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

// Target returns the session's upload destination.
func (c *Controller) Target() internal_type.UploadTarget { return c.target }

// SourceInfo reports the active stream settings, or nil when not capturing.
func (c *Controller) SourceInfo() *internal_type.StreamInfo {
	c.mu.Lock()
	src := c.source
	c.mu.Unlock()
	if src == nil {
		return nil
	}
	return src.Info()
}

// Start acquires the source and begins recording with a periodic chunk
// boundary every chunkIntervalMs. Valid only from idle; a failed
// acquisition moves the session to error.
func (c *Controller) Start(ctx context.Context, acquire internal_type.AcquireFunc, chunkIntervalMs int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.State != internal_type.StateIdle {
		return &internal_type.InvalidStateTransitionError{Op: "start", State: c.sess.State}
	}
	if chunkIntervalMs <= 0 {
		return fmt.Errorf("chunk interval must be positive, got %d", chunkIntervalMs)
	}

	source, err := acquire(ctx)
	if err != nil {
		c.sess.State = internal_type.StateError
		c.emit(internal_type.Event{Kind: internal_type.EventError, Err: err})
		return fmt.Errorf("acquiring capture source: %w", err)
	}

	now := c.clock()
	c.source = source
	c.sess.State = internal_type.StateRecording
	c.sess.StartedAt = now
	c.sess.ChunkIntervalMs = chunkIntervalMs
	c.segStart = now
	c.openDur = 0

	go c.feed(source)
	c.startBoundaryLoopLocked()

	c.emit(internal_type.Event{Kind: internal_type.EventStarted})
	c.logger.Infow("capture started",
		"session", c.sess.ID, "mode", c.sess.Mode, "interval_ms", chunkIntervalMs)
	return nil
}

// feed drains the source into the open chunk buffer. While paused, chunk
// emission stops and incoming media is discarded; the source itself stays
// acquired.
func (c *Controller) feed(source internal_type.CaptureSource) {
	for pkt := range source.Packets() {
		c.mu.Lock()
		if c.sess.State == internal_type.StateRecording {
			c.buffer.Write(pkt.Data)
		}
		c.mu.Unlock()
	}
}

func (c *Controller) startBoundaryLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stintCancel = cancel
	tk := c.newTicker(time.Duration(c.sess.ChunkIntervalMs) * time.Millisecond)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C():
				c.onBoundaryTick()
			}
		}
	}()
}

func (c *Controller) onBoundaryTick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	// a tick can race a pause/stop that already cancelled the stint
	if c.sess.State != internal_type.StateRecording {
		return
	}
	c.closeChunkLocked(false)
}

// closeChunkLocked closes the open chunk and hands it to the sink. A
// zero-duration open chunk is skipped (pause immediately followed by
// resume must not emit one); on the final close a zero-duration chunk is
// still emitted if it carries buffered payload.
func (c *Controller) closeChunkLocked(final bool) {
	now := c.clock()
	dur := c.openDur
	if c.sess.State == internal_type.StateRecording {
		dur += now.Sub(c.segStart)
	}

	if dur <= 0 && (!final || c.buffer.Len() == 0) {
		c.segStart = now
		return
	}

	payload := make([]byte, c.buffer.Len())
	copy(payload, c.buffer.Bytes())
	chunk := internal_type.Chunk{
		SequenceIndex: c.sess.ChunkSequenceCounter,
		ProducedAt:    now,
		Payload:       payload,
		SizeBytes:     len(payload),
		DurationMs:    dur.Milliseconds(),
	}

	c.sess.ChunkSequenceCounter++
	c.accumulated += dur
	c.sess.AccumulatedDurationMs = c.accumulated.Milliseconds()
	c.buffer.Reset()
	c.openDur = 0
	c.segStart = now

	// fire-and-forget: the sink must never block the capture loop
	c.sink.OnChunkProduced(context.Background(), c.sess.ID, chunk, c.target)
	c.emit(internal_type.Event{Kind: internal_type.EventChunkProduced, Chunk: &chunk})
	c.logger.Debugw("chunk closed",
		"session", c.sess.ID, "seq", chunk.SequenceIndex,
		"bytes", chunk.SizeBytes, "duration_ms", chunk.DurationMs)
}

// Pause suspends the boundary timer. The source stream is not released;
// only chunk emission stops. Valid only from recording.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.State != internal_type.StateRecording {
		return &internal_type.InvalidStateTransitionError{Op: "pause", State: c.sess.State}
	}

	c.openDur += c.clock().Sub(c.segStart)
	c.sess.State = internal_type.StatePaused
	if c.stintCancel != nil {
		c.stintCancel()
		c.stintCancel = nil
	}
	c.emit(internal_type.Event{Kind: internal_type.EventPaused})
	return nil
}

// Resume restarts the boundary timer. Valid only from paused.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess.State != internal_type.StatePaused {
		return &internal_type.InvalidStateTransitionError{Op: "resume", State: c.sess.State}
	}

	c.sess.State = internal_type.StateRecording
	c.segStart = c.clock()
	c.startBoundaryLoopLocked()
	c.emit(internal_type.Event{Kind: internal_type.EventResumed})
	return nil
}

// ReplaceVideo forwards an in-place video swap to the source. Valid while
// recording or paused.
func (c *Controller) ReplaceVideo(ctx context.Context, next internal_type.CaptureSource) error {
	c.mu.Lock()
	state := c.sess.State
	source := c.source
	c.mu.Unlock()

	if state != internal_type.StateRecording && state != internal_type.StatePaused {
		return &internal_type.InvalidStateTransitionError{Op: "replaceVideo", State: state}
	}
	return source.ReplaceVideo(ctx, next)
}

// Stop closes the final in-progress chunk, releases the source, waits for
// the finalizer (which waits for all in-flight uploads) and resolves with
// the assembled artifact and the accumulated duration. Valid from
// recording or paused. A finalize failure moves the session to error and
// is returned, never swallowed.
func (c *Controller) Stop(ctx context.Context) (*StopResult, error) {
	c.mu.Lock()
	if c.sess.State != internal_type.StateRecording && c.sess.State != internal_type.StatePaused {
		state := c.sess.State
		c.mu.Unlock()
		return nil, &internal_type.InvalidStateTransitionError{Op: "stop", State: state}
	}

	if c.stintCancel != nil {
		c.stintCancel()
		c.stintCancel = nil
	}
	// the final chunk may be shorter than the interval
	c.closeChunkLocked(true)
	c.sess.State = internal_type.StateFinalizing

	source := c.source
	c.source = nil
	durationMs := c.accumulated.Milliseconds()
	sessionID := c.sess.ID
	c.mu.Unlock()

	if source != nil {
		source.Release()
	}

	artifact, err := c.finalizer.Finalize(ctx, sessionID)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.sess.State = internal_type.StateError
		c.emit(internal_type.Event{Kind: internal_type.EventError, Err: err})
		return nil, fmt.Errorf("finalizing session %s: %w", sessionID, err)
	}

	if artifact.DurationMs == 0 {
		artifact.DurationMs = durationMs
	}
	c.sess.State = internal_type.StateCompleted
	c.emit(internal_type.Event{Kind: internal_type.EventCompleted})
	c.logger.Infow("capture completed",
		"session", sessionID, "chunks", c.sess.ChunkSequenceCounter, "duration_ms", durationMs)
	return &StopResult{Artifact: artifact, DurationMs: durationMs}, nil
}

// notifyChunkFailed surfaces a mid-session exhausted-retries warning on
// the event stream without interrupting the live recording.
func (c *Controller) notifyChunkFailed(sequenceIndex, attempts int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emit(internal_type.Event{
		Kind: internal_type.EventChunkFailed,
		Err: &internal_type.ChunkUploadFailedError{
			SessionID:     c.sess.ID,
			SequenceIndex: sequenceIndex,
			Attempts:      attempts,
			Err:           err,
		},
	})
}

// emit pushes without blocking; lifecycle events are advisory and a stalled
// subscriber must not stall capture. The authoritative chunk delivery path
// is the sink, not this channel.
func (c *Controller) emit(ev internal_type.Event) {
	ev.SessionID = c.sess.ID
	ev.At = c.clock()
	select {
	case c.events <- ev:
	default:
		c.logger.Debugf("event channel full, dropping %s", ev.Kind)
	}
}
