package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meetsense/platform/internal/config"
	apperrors "github.com/meetsense/platform/internal/errors"
)

// sweepInterval bounds how stale an evictable session can get.
const sweepInterval = time.Minute

// Manager is the session registry. It owns creation, lookup, and the idle
// eviction sweep.
type Manager struct {
	cfg    *config.Config
	collab Collaborators

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a manager and starts its eviction sweep.
func NewManager(cfg *config.Config, collab Collaborators) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:      cfg,
		collab:   collab,
		sessions: make(map[uuid.UUID]*Session),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.wg.Add(1)
	go m.sweep()
	return m
}

// Create starts a new session for a project.
func (m *Manager) Create(projectID string) (*Session, error) {
	if m.ctx.Err() != nil {
		return nil, apperrors.New(apperrors.CodeUnavailable, "manager shutting down")
	}
	s := newSession(m.ctx, projectID, m.cfg, m.collab)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	slog.Info("session created", "session_id", s.ID, "project_id", projectID)
	return s, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "unknown session %s", id)
	}
	return s, nil
}

// End finalizes a session and removes it from the registry.
func (m *Manager) End(id uuid.UUID) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	err = s.End()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return err
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close finalizes every session and stops the sweep.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range all {
		if err := s.End(); err != nil {
			slog.Warn("session close failed", "session_id", s.ID, "error", err)
		}
	}

	m.cancel()
	m.wg.Wait()
}

// sweep evicts sessions idle past the configured timeout and drops finished
// ones from the registry.
func (m *Manager) sweep() {
	defer m.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.RLock()
		candidates := make([]*Session, 0, len(m.sessions))
		for _, s := range m.sessions {
			candidates = append(candidates, s)
		}
		m.mu.RUnlock()

		for _, s := range candidates {
			select {
			case <-s.Done():
				m.mu.Lock()
				delete(m.sessions, s.ID)
				m.mu.Unlock()
				continue
			default:
			}

			if s.IdleFor() < m.cfg.SessionIdleTimeout {
				continue
			}
			slog.Info("evicting idle session",
				"session_id", s.ID, "idle", s.IdleFor().Round(time.Second))
			if err := s.End(); err != nil {
				slog.Warn("idle eviction failed", "session_id", s.ID, "error", err)
			}
			m.mu.Lock()
			delete(m.sessions, s.ID)
			m.mu.Unlock()
		}
	}
}
