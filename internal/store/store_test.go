// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glimpsehq/glimpse/config"
	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-store"),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

// --- Memory store ---

func TestMemoryStorePutHeadDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	location, err := store.Put(ctx, "sessions/s1/recording.000000", []byte("chunk"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "memory://sessions/s1/recording.000000", location)

	info, err := store.Head(ctx, "sessions/s1/recording.000000")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.SizeBytes)

	require.NoError(t, store.Delete(ctx, "sessions/s1/recording.000000"))
	_, err = store.Head(ctx, "sessions/s1/recording.000000")
	assert.ErrorIs(t, err, internal_type.ErrObjectNotFound)
}

func TestMemoryStoreDeleteAbsentKeySucceeds(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Delete(context.Background(), "never/existed"))
}

func TestMemoryStoreSignedURLExpires(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.clock = func() time.Time { return now }

	url, err := store.Sign(context.Background(), "sessions/s1/recording", 60*time.Second)
	require.NoError(t, err)
	assert.True(t, store.VerifySignedURL(url), "fresh URL must be valid")

	now = now.Add(61 * time.Second)
	assert.False(t, store.VerifySignedURL(url), "URL must be unusable after its window")
}

func TestMemoryStorePutCopiesPayload(t *testing.T) {
	store := NewMemoryStore()
	payload := []byte("original")
	_, err := store.Put(context.Background(), "k", payload, "")
	require.NoError(t, err)

	payload[0] = 'X'
	got, ok := store.Object("k")
	require.True(t, ok)
	assert.Equal(t, "original", string(got))
}

// --- HTTP gateway store ---

type fakeGateway struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{objects: make(map[string][]byte)}
}

func (g *fakeGateway) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sign" && r.Method == http.MethodPost {
			var req struct {
				Key        string `json:"key"`
				TTLSeconds int64  `json:"ttlSeconds"`
			}
			json.NewDecoder(r.Body).Decode(&req)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"url": "https://signed.example/" + req.Key + "?ttl=" + strconv.FormatInt(req.TTLSeconds, 10),
			})
			return
		}

		key := strings.TrimPrefix(r.URL.Path, "/objects/")
		g.mu.Lock()
		defer g.mu.Unlock()
		switch r.Method {
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			g.objects[key] = body
			w.WriteHeader(http.StatusCreated)
		case http.MethodHead:
			body, ok := g.objects[key]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
		case http.MethodDelete:
			if _, ok := g.objects[key]; !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			delete(g.objects, key)
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newGatewayStore(t *testing.T) (*HTTPStore, *fakeGateway, func()) {
	t.Helper()
	gateway := newFakeGateway()
	server := httptest.NewServer(gateway.handler())
	store, err := NewHTTPStore(newTestLogger(t), config.AssetStoreConfig{
		Provider:   "http",
		Bucket:     "glimpse-recordings",
		GatewayURL: server.URL,
	})
	require.NoError(t, err)
	return store, gateway, server.Close
}

func TestHTTPStoreRoundtrip(t *testing.T) {
	store, gateway, done := newGatewayStore(t)
	defer done()
	ctx := context.Background()

	_, err := store.Put(ctx, "sessions/s1/recording.000000", []byte("payload"), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(gateway.objects["sessions/s1/recording.000000"]))

	info, err := store.Head(ctx, "sessions/s1/recording.000000")
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.SizeBytes)

	require.NoError(t, store.Delete(ctx, "sessions/s1/recording.000000"))
	_, err = store.Head(ctx, "sessions/s1/recording.000000")
	assert.ErrorIs(t, err, internal_type.ErrObjectNotFound)
}

func TestHTTPStoreDeleteAbsentKeySucceeds(t *testing.T) {
	store, _, done := newGatewayStore(t)
	defer done()
	assert.NoError(t, store.Delete(context.Background(), "never/existed"))
}

func TestHTTPStoreSign(t *testing.T) {
	store, _, done := newGatewayStore(t)
	defer done()

	url, err := store.Sign(context.Background(), "sessions/s1/recording", 900*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/sessions/s1/recording?ttl=900", url)
}

func TestHTTPStoreRequiresGatewayURL(t *testing.T) {
	_, err := NewHTTPStore(newTestLogger(t), config.AssetStoreConfig{Provider: "http"})
	assert.Error(t, err)
}

func TestS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(newTestLogger(t), config.AssetStoreConfig{Provider: "s3"})
	assert.Error(t, err)
}
