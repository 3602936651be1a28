package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/framecull/framecull-agent/internal/clip"
	"github.com/framecull/framecull-agent/internal/compositor"
	"github.com/framecull/framecull-agent/internal/lut"
	"github.com/framecull/framecull-agent/internal/media"
)

// Manager owns the live sessions, keyed by clip id. The decode handle
// pool caps how many can exist at once; opening a clip that already has
// a session replaces it.
type Manager struct {
	pool        *media.Pool
	comp        *compositor.Compositor
	guardFrames int
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(pool *media.Pool, comp *compositor.Compositor, guardFrames int, logger *slog.Logger) *Manager {
	return &Manager{
		pool:        pool,
		comp:        comp,
		guardFrames: guardFrames,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Open creates a session for the clip, closing any prior session for the
// same clip first so its decode handle is returned to the pool before a
// new one is claimed.
func (m *Manager) Open(ctx context.Context, c *clip.Clip, lutID string, table *lut.Table, events Events) (*Session, error) {
	m.mu.Lock()
	prior := m.sessions[c.ID]
	delete(m.sessions, c.ID)
	m.mu.Unlock()
	if prior != nil {
		if err := prior.Close(); err != nil {
			m.logger.Warn("closing prior session", "clip_id", c.ID, "error", err)
		}
	}

	src, err := m.pool.Open(ctx, c.Path)
	if err != nil {
		return nil, fmt.Errorf("open decode handle: %w", err)
	}

	sess := NewSession(c.ID, src, c.Trim, lutID, table, m.comp, m.guardFrames, events, m.logger)

	m.mu.Lock()
	m.sessions[c.ID] = sess
	m.mu.Unlock()

	m.logger.Info("playback session opened", "clip_id", c.ID, "lut_id", lutID)
	return sess, nil
}

// Get returns the live session for a clip, if any.
func (m *Manager) Get(clipID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[clipID]
	return s, ok
}

// Close tears down the session for a clip. Closing an unknown clip is a
// no-op.
func (m *Manager) Close(clipID string) error {
	m.mu.Lock()
	s := m.sessions[clipID]
	delete(m.sessions, clipID)
	m.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

// CloseAll tears down every live session; used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			m.logger.Warn("closing session", "clip_id", s.ClipID(), "error", err)
		}
	}
}
