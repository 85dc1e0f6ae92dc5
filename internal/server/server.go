package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/meetsense/platform/internal/errors"
	"github.com/meetsense/platform/internal/scheduler"
	"github.com/meetsense/platform/internal/session"
	"github.com/meetsense/platform/internal/trace"
)

// Inbound message types.
type Message struct {
	Type string `json:"type"`
}

type StartSessionMessage struct {
	Type      string `json:"type"`
	ProjectID string `json:"project_id"`
}

type ChunkMessage struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	Seq        int    `json:"seq"`
	Speaker    string `json:"speaker,omitempty"`
	Timestamp  string `json:"timestamp,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

// ErrorMessage reports a rejected operation without closing the connection.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections. One WebSocket connection
// drives at most one session at a time.
type Server struct {
	manager *session.Manager
}

// New creates a new server.
func New(manager *session.Manager) *Server {
	return &Server{manager: manager}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": s.manager.Count(),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	rl := &rateLimiter{}
	var (
		sess      *session.Session
		forwardWG sync.WaitGroup
	)
	defer func() {
		// A dropped connection ends its session; the final record still goes
		// through the event channel drain below.
		if sess != nil {
			_ = s.manager.End(sess.ID)
			forwardWG.Wait()
		}
	}()

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			s.writeError(ctx, conn, apperrors.New(apperrors.CodeRateLimited, "rate limit exceeded"))
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "start_session":
			if sess != nil {
				s.writeError(ctx, conn, apperrors.New(apperrors.CodeSessionState, "session already started on this connection"))
				continue
			}
			var start StartSessionMessage
			if err := json.Unmarshal(msg, &start); err != nil {
				continue
			}
			sess, err = s.manager.Create(start.ProjectID)
			if err != nil {
				s.writeError(ctx, conn, err)
				continue
			}
			forwardWG.Add(1)
			go func() {
				defer forwardWG.Done()
				s.forward(ctx, conn, sess)
			}()

		case "chunk":
			if sess == nil {
				s.writeError(ctx, conn, apperrors.New(apperrors.CodeSessionState, "no session started"))
				continue
			}
			var cm ChunkMessage
			if err := json.Unmarshal(msg, &cm); err != nil {
				continue
			}
			if err := sess.Ingest(toChunk(cm)); err != nil {
				s.writeError(ctx, conn, err)
			}

		case "pause", "resume", "end_session":
			if sess == nil {
				s.writeError(ctx, conn, apperrors.New(apperrors.CodeSessionState, "no session started"))
				continue
			}
			var opErr error
			switch base.Type {
			case "pause":
				opErr = sess.Pause()
			case "resume":
				opErr = sess.Resume()
			case "end_session":
				opErr = s.manager.End(sess.ID)
				forwardWG.Wait()
				sess = nil
			}
			if opErr != nil {
				s.writeError(ctx, conn, opErr)
			}

		default:
			log.Debug("unknown message type", "type", base.Type)
		}
	}
}

// forward streams session events to the connection until the session's event
// channel closes.
func (s *Server) forward(ctx context.Context, conn *websocket.Conn, sess *session.Session) {
	for evt := range sess.Events() {
		if err := wsjson.Write(ctx, conn, evt); err != nil {
			trace.Logger(ctx).Debug("event write failed", "session_id", sess.ID, "error", err)
			// Keep draining so the session loop is never the one blocked.
		}
	}
}

func (s *Server) writeError(ctx context.Context, conn *websocket.Conn, err error) {
	_ = wsjson.Write(ctx, conn, ErrorMessage{
		Type:    "error",
		Code:    string(apperrors.CodeOf(err)),
		Message: err.Error(),
	})
}

func toChunk(cm ChunkMessage) scheduler.Chunk {
	ch := scheduler.Chunk{
		Text:     cm.Text,
		Seq:      cm.Seq,
		Speaker:  cm.Speaker,
		Duration: time.Duration(cm.DurationMS) * time.Millisecond,
	}
	if cm.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, cm.Timestamp); err == nil {
			ch.Timestamp = ts
		}
	}
	if ch.Timestamp.IsZero() {
		ch.Timestamp = time.Now()
	}
	return ch
}
