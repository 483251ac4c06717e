// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package internal_capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internal_type "github.com/glimpsehq/glimpse/internal/type"
	"github.com/glimpsehq/glimpse/pkg/commons"
)

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(
		commons.Name("test-capture"),
		commons.Level("debug"),
	)
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	return logger
}

// stubSource is a hand-driven CaptureSource for exercising the merge and
// replace plumbing without devices.
type stubSource struct {
	mu       sync.Mutex
	out      chan internal_type.MediaPacket
	info     *internal_type.StreamInfo
	released bool
	once     sync.Once
}

func newStubSource(info *internal_type.StreamInfo) *stubSource {
	return &stubSource{
		out:  make(chan internal_type.MediaPacket, 16),
		info: info,
	}
}

func (s *stubSource) Packets() <-chan internal_type.MediaPacket { return s.out }

func (s *stubSource) Info() *internal_type.StreamInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

func (s *stubSource) ReplaceVideo(ctx context.Context, next internal_type.CaptureSource) error {
	return nil
}

func (s *stubSource) Release() {
	s.once.Do(func() {
		s.mu.Lock()
		s.released = true
		s.mu.Unlock()
		close(s.out)
	})
}

func (s *stubSource) isReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

func (s *stubSource) emit(data string) {
	s.out <- internal_type.MediaPacket{Data: []byte(data), ReceivedAt: time.Now()}
}

func collectPackets(t *testing.T, src internal_type.CaptureSource, n int) []string {
	t.Helper()
	got := make([]string, 0, n)
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case pkt, ok := <-src.Packets():
			if !ok {
				t.Fatalf("packet channel closed after %d packets, wanted %d", len(got), n)
			}
			got = append(got, string(pkt.Data))
		case <-timeout:
			t.Fatalf("timed out after %d packets, wanted %d", len(got), n)
		}
	}
	return got
}

func TestCombinedMergesBothLegs(t *testing.T) {
	video := newStubSource(&internal_type.StreamInfo{Width: 1920, Height: 1080, FrameRate: 30, Surface: "monitor"})
	audio := newStubSource(nil)
	combined := NewCombinedSource(newTestLogger(t), video, audio)

	video.emit("v0")
	audio.emit("a0")
	video.emit("v1")

	got := collectPackets(t, combined, 3)
	joined := strings.Join(got, ",")
	assert.Contains(t, joined, "v0")
	assert.Contains(t, joined, "a0")
	assert.Contains(t, joined, "v1")

	info := combined.Info()
	require.NotNil(t, info)
	assert.Equal(t, "monitor", info.Surface)
}

func TestCombinedReleaseIsJointAndIdempotent(t *testing.T) {
	video := newStubSource(nil)
	audio := newStubSource(nil)
	combined := NewCombinedSource(newTestLogger(t), video, audio)

	combined.Release()
	combined.Release() // second call is a no-op

	assert.True(t, video.isReleased())
	assert.True(t, audio.isReleased())

	// channel closes once producers drain
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-combined.Packets():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("packet channel never closed after release")
		}
	}
}

func TestCombinedReplaceVideoSwapsWithoutDroppingAudio(t *testing.T) {
	video := newStubSource(&internal_type.StreamInfo{Surface: "monitor"})
	audio := newStubSource(nil)
	combined := NewCombinedSource(newTestLogger(t), video, audio)

	next := newStubSource(&internal_type.StreamInfo{Surface: "window"})
	require.NoError(t, combined.ReplaceVideo(context.Background(), next))

	assert.True(t, video.isReleased(), "old video leg must be stopped after the swap")
	assert.False(t, audio.isReleased(), "audio leg must keep flowing")
	assert.False(t, next.isReleased())

	next.emit("v-new")
	audio.emit("a-new")
	got := collectPackets(t, combined, 2)
	assert.ElementsMatch(t, []string{"v-new", "a-new"}, got)

	info := combined.Info()
	require.NotNil(t, info)
	assert.Equal(t, "window", info.Surface)
}

func TestWebsocketSourceIngest(t *testing.T) {
	logger := newTestLogger(t)
	upgrader := websocket.Upgrader{}
	sources := make(chan internal_type.CaptureSource, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		sources <- NewWebsocketSource(logger, conn, nil)
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	src := <-sources
	defer src.Release()

	require.NoError(t, client.WriteMessage(websocket.TextMessage,
		[]byte(`{"width":1280,"height":720,"frameRate":24,"surface":"tab"}`)))
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("blob-0")))
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte("blob-1")))

	got := collectPackets(t, src, 2)
	assert.Equal(t, []string{"blob-0", "blob-1"}, got)

	// info update from the text frame has been applied by now: packets and
	// info frames are handled on the same read loop
	info := src.Info()
	require.NotNil(t, info)
	assert.Equal(t, 1280, info.Width)
	assert.Equal(t, "tab", info.Surface)
}

func TestAcquireRejectsUnknownMode(t *testing.T) {
	_, err := Acquire(context.Background(), newTestLogger(t), internal_type.Mode("hologram"), internal_type.Constraints{})
	assert.ErrorIs(t, err, internal_type.ErrUnsupportedMode)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"camera", false},
		{"screen", false},
		{"combined", false},
		{"", true},
		{"desktop", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := internal_type.ParseMode(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, internal_type.ErrUnsupportedMode)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
