package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meetsense/platform/internal/config"
	"github.com/meetsense/platform/internal/session"
)

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	rl := &rateLimiter{}

	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("message %d rejected inside the window", i)
		}
	}
	if rl.allow() {
		t.Error("message over the limit should be rejected")
	}
}

func TestRateLimiterSlidesWindow(t *testing.T) {
	rl := &rateLimiter{}
	// Backdate every timestamp past the window.
	for i := 0; i < RateLimitMessages; i++ {
		rl.timestamps = append(rl.timestamps, time.Now().Add(-2*RateLimitWindow))
	}

	if !rl.allow() {
		t.Error("expired timestamps should not count against the limit")
	}
}

func TestToChunk(t *testing.T) {
	ts := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	ch := toChunk(ChunkMessage{
		Text:       "Complete the rollout by Friday",
		Seq:        7,
		Speaker:    "alice",
		Timestamp:  ts.Format(time.RFC3339),
		DurationMS: 1500,
	})

	if ch.Seq != 7 || ch.Speaker != "alice" {
		t.Errorf("chunk = %+v", ch)
	}
	if !ch.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", ch.Timestamp, ts)
	}
	if ch.Duration != 1500*time.Millisecond {
		t.Errorf("duration = %v, want 1.5s", ch.Duration)
	}
}

func TestToChunkDefaultsTimestamp(t *testing.T) {
	ch := toChunk(ChunkMessage{Text: "hello", Seq: 1, Timestamp: "not-a-time"})
	if ch.Timestamp.IsZero() {
		t.Error("unparseable timestamp should default to now")
	}
}

func TestHealthEndpoint(t *testing.T) {
	cfg := &config.Config{SessionIdleTimeout: time.Hour}
	m := session.NewManager(cfg, session.Collaborators{})
	defer m.Close()

	srv := New(m)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
}
