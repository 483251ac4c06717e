// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

// UploadStatus is the lifecycle of one chunk upload.
type UploadStatus string

const (
	StatusPending  UploadStatus = "pending"
	StatusUploaded UploadStatus = "uploaded"
	StatusFailed   UploadStatus = "failed"
)

// UploadRecord is the per-chunk bookkeeping. Records are mutated only by
// the uploader's own completion callbacks and are retained until finalize
// succeeds, so stop can detect outstanding or failed chunks by a simple
// scan.
type UploadRecord struct {
	SequenceIndex int          `json:"sequenceIndex"`
	Status        UploadStatus `json:"status"`
	Attempts      int          `json:"attempts"`
	RemoteKey     string       `json:"remoteKey"`
	SizeBytes     int          `json:"sizeBytes"`
	DurationMs    int64        `json:"durationMs"`
	Err           error        `json:"-"`
}

// ManifestChunk is one entry of the finalized artifact manifest.
type ManifestChunk struct {
	SequenceIndex int    `json:"sequenceIndex"`
	Key           string `json:"key"`
	SizeBytes     int64  `json:"sizeBytes"`
	DurationMs    int64  `json:"durationMs"`
}

// Manifest is the artifact written at the session's base key: an ordered
// reference to every uploaded chunk. Readers reassemble or address chunks
// through it; chunk upload completion order never leaks into it.
type Manifest struct {
	SessionID  string          `json:"sessionId"`
	CreatedAt  time.Time       `json:"createdAt"`
	TotalBytes int64           `json:"totalBytes"`
	DurationMs int64           `json:"durationMs"`
	Chunks     []ManifestChunk `json:"chunks"`
}

// ChunkKey derives the storage key for one chunk: the session's base key
// plus the zero-padded sequence index, so lexical listing matches sequence
// order.
func ChunkKey(baseKey string, sequenceIndex int) string {
	return fmt.Sprintf("%s.%06d", baseKey, sequenceIndex)
}

type sessionUploads struct {
	target  internal_type.UploadTarget
	records map[int]*UploadRecord
	wg      sync.WaitGroup
}

// Uploader persists chunks as they are produced and assembles the finished
// artifact, without ever blocking the capture loop. Multiple chunks of one
// session upload concurrently; record updates are serialized behind the
// uploader's mutex.
type Uploader struct {
	logger      commons.Logger
	store       internal_type.ObjectStore
	notifier    internal_type.UploadFailureNotifier
	maxAttempts int
	backoffInit time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionUploads
}

// Option configures the uploader.
type Option func(*Uploader)

// WithMaxAttempts bounds upload retries per chunk (minimum 1).
func WithMaxAttempts(n int) Option {
	return func(u *Uploader) {
		if n >= 1 {
			u.maxAttempts = n
		}
	}
}

// WithInitialBackoff sets the first retry delay.
func WithInitialBackoff(d time.Duration) Option {
	return func(u *Uploader) {
		if d > 0 {
			u.backoffInit = d
		}
	}
}

// WithFailureNotifier installs the early-warning hook for chunks that
// exhaust their retries mid-session.
func WithFailureNotifier(n internal_type.UploadFailureNotifier) Option {
	return func(u *Uploader) { u.notifier = n }
}

// SetFailureNotifier installs the early-warning hook after construction.
// The session registry consumes the uploader as its sink and finalizer,
// and the uploader warns the registry about exhausted chunks; one of the
// two has to be wired late.
func (u *Uploader) SetFailureNotifier(n internal_type.UploadFailureNotifier) {
	u.mu.Lock()
	u.notifier = n
	u.mu.Unlock()
}

// NewUploader builds an uploader on top of an object store.
func NewUploader(logger commons.Logger, store internal_type.ObjectStore, opts ...Option) *Uploader {
	u := &Uploader{
		logger:      logger,
		store:       store,
		maxAttempts: 4,
		backoffInit: 500 * time.Millisecond,
		sessions:    make(map[string]*sessionUploads),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// OnChunkProduced registers the chunk as pending and uploads it on a
// detached goroutine. Fire-and-forget from the caller's perspective: a
// chunk that fails all retries is recorded as failed, never re-raised into
// the capture loop and never silently dropped.
func (u *Uploader) OnChunkProduced(ctx context.Context, sessionID string, chunk internal_type.Chunk, target internal_type.UploadTarget) {
	u.mu.Lock()
	su, ok := u.sessions[sessionID]
	if !ok {
		su = &sessionUploads{
			target:  target,
			records: make(map[int]*UploadRecord),
		}
		u.sessions[sessionID] = su
	}
	record := &UploadRecord{
		SequenceIndex: chunk.SequenceIndex,
		Status:        StatusPending,
		RemoteKey:     ChunkKey(target.Key, chunk.SequenceIndex),
		SizeBytes:     chunk.SizeBytes,
		DurationMs:    chunk.DurationMs,
	}
	su.records[chunk.SequenceIndex] = record
	su.wg.Add(1)
	u.mu.Unlock()

	go u.upload(ctx, sessionID, su, record, chunk.Payload)
}

func (u *Uploader) upload(ctx context.Context, sessionID string, su *sessionUploads, record *UploadRecord, payload []byte) {
	defer su.wg.Done()

	key := record.RemoteKey
	attempts := 0
	operation := func() error {
		attempts++
		_, err := u.store.Put(ctx, key, payload, "application/octet-stream")
		if err != nil {
			u.logger.Debugf("upload attempt %d for %s failed: %v", attempts, key, err)
		}
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = u.backoffInit
	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(u.maxAttempts-1)), ctx))

	u.mu.Lock()
	record.Attempts = attempts
	if err != nil {
		record.Status = StatusFailed
		record.Err = err
	} else {
		record.Status = StatusUploaded
	}
	notifier := u.notifier
	u.mu.Unlock()

	if err != nil {
		u.logger.Warnw("chunk upload exhausted retries",
			"session", sessionID, "seq", record.SequenceIndex, "attempts", attempts, "error", err)
		if notifier != nil {
			notifier.OnChunkUploadFailed(sessionID, record.SequenceIndex, attempts, err)
		}
	}
}

// Records returns a snapshot of the session's upload bookkeeping, ordered
// by sequence index.
func (u *Uploader) Records(sessionID string) []UploadRecord {
	u.mu.Lock()
	defer u.mu.Unlock()
	su, ok := u.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]UploadRecord, 0, len(su.records))
	for _, r := range su.records {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out
}

// Finalize waits for every pending upload of the session to settle, then
// writes the ordered chunk manifest at the session's base key. It fails
// with IncompleteUploadError naming the sequence indices that never
// reached uploaded; it never partially succeeds by omitting chunks.
// Records are retained on failure so the caller may retry finalize.
func (u *Uploader) Finalize(ctx context.Context, sessionID string) (*internal_type.Artifact, error) {
	u.mu.Lock()
	su, ok := u.sessions[sessionID]
	u.mu.Unlock()
	if !ok {
		// a session that stopped before producing any chunk has no
		// storage-resident artifact
		return &internal_type.Artifact{}, nil
	}

	// settles in upload completion order, which is irrelevant here: only
	// the manifest order matters, and that is sequence order
	su.wg.Wait()

	u.mu.Lock()
	records := make([]*UploadRecord, 0, len(su.records))
	for _, r := range su.records {
		records = append(records, r)
	}
	target := su.target
	u.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].SequenceIndex < records[j].SequenceIndex })

	var missing []int
	for _, r := range records {
		if r.Status != StatusUploaded {
			missing = append(missing, r.SequenceIndex)
		}
	}
	if len(missing) > 0 {
		return nil, &internal_type.IncompleteUploadError{SessionID: sessionID, Missing: missing}
	}

	manifest := Manifest{
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
		Chunks:    make([]ManifestChunk, 0, len(records)),
	}
	for _, r := range records {
		size := int64(r.SizeBytes)
		// confirm the stored size when the provider can report it
		if info, err := u.store.Head(ctx, r.RemoteKey); err == nil {
			size = info.SizeBytes
		}
		manifest.TotalBytes += size
		manifest.DurationMs += r.DurationMs
		manifest.Chunks = append(manifest.Chunks, ManifestChunk{
			SequenceIndex: r.SequenceIndex,
			Key:           r.RemoteKey,
			SizeBytes:     size,
			DurationMs:    r.DurationMs,
		})
	}

	body, err := json.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest for session %s: %v", sessionID, err)
	}
	location, err := u.store.Put(ctx, target.Key, body, "application/json")
	if err != nil {
		return nil, fmt.Errorf("writing manifest for session %s: %w", sessionID, err)
	}

	// bookkeeping is only dropped once finalize has succeeded
	u.mu.Lock()
	delete(u.sessions, sessionID)
	u.mu.Unlock()

	return &internal_type.Artifact{
		Bucket:     target.Bucket,
		Key:        target.Key,
		Location:   location,
		Chunks:     len(records),
		SizeBytes:  manifest.TotalBytes,
		DurationMs: manifest.DurationMs,
	}, nil
}

// SignedURL returns a time-limited read URL for an artifact or a single
// chunk.
func (u *Uploader) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return u.store.Sign(ctx, key, ttl)
}

// Delete removes an artifact or chunk. Deleting an absent object is a
// success, not an error.
func (u *Uploader) Delete(ctx context.Context, key string) error {
	return u.store.Delete(ctx, key)
}
