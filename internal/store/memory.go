// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.

package internal_store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
)

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStore is an in-process ObjectStore used in tests and local
// development. Signed URLs carry a real expiry that VerifySignedURL
// honors.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]memoryObject

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		clock:   time.Now,
	}
}

func (m *MemoryStore) Provider() string { return "memory" }

func (m *MemoryStore) Put(ctx context.Context, key string, payload []byte, contentType string) (string, error) {
	data := make([]byte, len(payload))
	copy(data, payload)
	m.mu.Lock()
	m.objects[key] = memoryObject{
		data:        data,
		contentType: contentType,
		modified:    m.clock(),
	}
	m.mu.Unlock()
	return "memory://" + key, nil
}

func (m *MemoryStore) Head(ctx context.Context, key string) (*internal_type.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", internal_type.ErrObjectNotFound, key)
	}
	return &internal_type.ObjectInfo{
		SizeBytes:    int64(len(obj.data)),
		LastModified: obj.modified,
	}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Sign(ctx context.Context, key string, ttl time.Duration) (string, error) {
	expires := m.clock().Add(ttl).Unix()
	return fmt.Sprintf("memory://%s?expires=%d", key, expires), nil
}

// VerifySignedURL reports whether the URL is still inside its window.
func (m *MemoryStore) VerifySignedURL(url string) bool {
	idx := strings.LastIndex(url, "?expires=")
	if idx < 0 {
		return false
	}
	expires, err := strconv.ParseInt(url[idx+len("?expires="):], 10, 64)
	if err != nil {
		return false
	}
	return m.clock().Unix() < expires
}

// Object returns the stored payload; test helper.
func (m *MemoryStore) Object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, false
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, true
}

// Len returns the number of stored objects; test helper.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
