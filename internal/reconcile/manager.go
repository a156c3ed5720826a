package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/auth"
	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/kv"
	"github.com/reelsync/backend/internal/metrics"
)

// Devices hands out the durable storage namespace of a device.
type Devices interface {
	Device(deviceID string) kv.Store
}

// Manager owns the live sessions of the process.
type Manager struct {
	devices     Devices
	authn       auth.Authenticator
	cfg         Config
	idleTimeout time.Duration
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. Sessions idle for longer than
// idleTimeout are closed by Reap.
func NewManager(devices Devices, authn auth.Authenticator, cfg Config, idleTimeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		devices:     devices,
		authn:       authn,
		cfg:         cfg,
		idleTimeout: idleTimeout,
		logger:      logger,
		sessions:    make(map[string]*Session),
	}
}

// Create starts a new session for deviceID and resolves its identity from
// token.
func (m *Manager) Create(ctx context.Context, deviceID, token string) (*Session, error) {
	if _, err := uuid.Parse(deviceID); err != nil {
		return nil, domain.ErrInvalidInput
	}

	s := NewSession(uuid.NewString(), deviceID, m.devices.Device(deviceID), m.authn, m.cfg, m.logger)

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	s.Start(ctx, token)
	m.logger.Info("session created",
		zap.String("session_id", s.ID),
		zap.String("device_id", deviceID),
		zap.String("state", s.Auth().Snapshot().State.String()),
	)
	return s, nil
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.Touch()
	return s, nil
}

// Destroy closes and forgets a session.
func (m *Manager) Destroy(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}

	s.Close()
	metrics.ActiveSessions.Dec()
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes every session idle for longer than the idle timeout as of now
// and returns how many were closed.
func (m *Manager) Reap(now time.Time) int {
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.IdleFor(now) > m.idleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
		metrics.ActiveSessions.Dec()
		metrics.SessionsReaped.Inc()
	}
	if len(idle) > 0 {
		m.logger.Info("reaped idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

// StartReaper runs Reap on interval until ctx is cancelled.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.Reap(now)
			}
		}
	}()
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
}
