package session

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nearword/nearword/internal/config"
	"github.com/nearword/nearword/internal/metrics"
	"github.com/nearword/nearword/internal/streaming"
)

// Manager is the registry of live sessions. It hands out ids and applies
// the configured per-session limits, including hot-reloaded ones.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	limits   config.LimitsConfig
	logger   *zap.Logger
}

// NewManager creates an empty session registry.
func NewManager(limits config.LimitsConfig, logger *zap.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		limits:   limits,
		logger:   logger,
	}
}

// Create registers a new session with a fresh id.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Session{
		id:      uuid.New().String(),
		outbox:  make(chan streaming.Event, m.limits.OutboxSize),
		limiter: rate.NewLimiter(rate.Limit(m.limits.GuessRate), m.limits.GuessBurst),
	}
	m.sessions[s.id] = s

	metrics.SessionsOpened.Inc()
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.logger.Debug("Session opened", zap.String("session_id", s.id))
	return s
}

// Get returns the session for id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove unregisters and closes a session. Unknown ids are a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	metrics.SessionsActive.Set(float64(len(m.sessions)))
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Close()
	m.logger.Debug("Session closed", zap.String("session_id", id))
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// UpdateLimits applies new rate limits to current and future sessions.
// Outbox sizes only change for sessions created afterwards.
func (m *Manager) UpdateLimits(limits config.LimitsConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	old := m.limits
	m.limits = limits
	for _, s := range m.sessions {
		s.setLimits(limits.GuessRate, limits.GuessBurst)
	}
	if old.GuessRate != limits.GuessRate || old.GuessBurst != limits.GuessBurst {
		m.logger.Info("Session guess limits updated",
			zap.Float64("rate", limits.GuessRate),
			zap.Int("burst", limits.GuessBurst),
			zap.Int("sessions", len(m.sessions)),
		)
	}
}
