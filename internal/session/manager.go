// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_session

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

// eventHistorySize bounds the per-session event history the manager
// retains for polling callers.
const eventHistorySize = 64

type sessionEntry struct {
	ctrl *Controller
	// done stops the event watcher when the session is removed before
	// reaching a terminal state.
	done chan struct{}
	// history is the watcher-maintained tail of the session's lifecycle
	// events, oldest first.
	history []internal_type.Event
}

// Manager is the registry of live controllers, keyed by session id, so the
// transport layer can address them. Completed and errored sessions stay
// until removed: the surrounding application may still query their final
// state after the media flow has ended.
//
// The manager is also each controller's event subscriber: a watcher drains
// the event channel into a bounded history, so the channel can never fill
// up, upload warnings always reach the log, and polling callers can read
// the recent lifecycle through Events.
type Manager struct {
	logger    commons.Logger
	sink      internal_type.ChunkSink
	finalizer internal_type.Finalizer
	bucket    string
	provider  string

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewManager wires the registry to the chunk sink and finalizer every
// controller it creates will use.
func NewManager(logger commons.Logger, sink internal_type.ChunkSink, finalizer internal_type.Finalizer, bucket, provider string) *Manager {
	return &Manager{
		logger:    logger,
		sink:      sink,
		finalizer: finalizer,
		bucket:    bucket,
		provider:  provider,
		sessions:  make(map[string]*sessionEntry),
	}
}

// Create registers a new idle controller and starts its event watcher. All
// chunk keys of the session derive from the same base key prefix.
func (m *Manager) Create(mode internal_type.Mode) *Controller {
	id := uuid.New().String()
	target := internal_type.UploadTarget{
		Bucket:   m.bucket,
		Key:      fmt.Sprintf("sessions/%s/recording", id),
		Provider: m.provider,
	}
	ctrl := NewController(m.logger, id, mode, target, m.sink, m.finalizer)
	entry := &sessionEntry{ctrl: ctrl, done: make(chan struct{})}

	m.mu.Lock()
	m.sessions[id] = entry
	m.mu.Unlock()

	go m.watch(entry)

	m.logger.Debugw("session registered", "session", id, "mode", mode)
	return ctrl
}

// watch drains the controller's event stream into the session's history.
// It returns once the session reaches a terminal state (no further events
// can be emitted) or the session is removed.
func (m *Manager) watch(entry *sessionEntry) {
	for {
		select {
		case <-entry.done:
			return
		case ev := <-entry.ctrl.Events():
			m.mu.Lock()
			entry.history = append(entry.history, ev)
			if len(entry.history) > eventHistorySize {
				entry.history = entry.history[len(entry.history)-eventHistorySize:]
			}
			m.mu.Unlock()

			switch ev.Kind {
			case internal_type.EventChunkFailed, internal_type.EventError:
				m.logger.Warnw("session event",
					"session", ev.SessionID, "kind", ev.Kind, "error", ev.Err)
			default:
				m.logger.Debugw("session event", "session", ev.SessionID, "kind", ev.Kind)
			}

			if ev.Kind == internal_type.EventCompleted || ev.Kind == internal_type.EventError {
				return
			}
		}
	}
}

// Get returns the controller for a session id.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", internal_type.ErrSessionNotFound, id)
	}
	return entry.ctrl, nil
}

// Events returns a snapshot of the session's recent lifecycle events,
// oldest first. Unknown sessions yield nil.
func (m *Manager) Events(id string) []internal_type.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil
	}
	out := make([]internal_type.Event, len(entry.history))
	copy(out, entry.history)
	return out
}

// Remove drops a session from the registry and stops its watcher.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		close(entry.done)
	}
}

// OnChunkUploadFailed routes the uploader's early warning to the owning
// controller's event stream.
func (m *Manager) OnChunkUploadFailed(sessionID string, sequenceIndex, attempts int, err error) {
	ctrl, lookupErr := m.Get(sessionID)
	if lookupErr != nil {
		m.logger.Warnf("upload failure for unknown session %s (chunk %d): %v", sessionID, sequenceIndex, err)
		return
	}
	ctrl.notifyChunkFailed(sequenceIndex, attempts, err)
}
