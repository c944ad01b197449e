package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/router"
	"github.com/finsight/backend/pkg/logger"
)

// Factory builds the per-session router with its own cache and memory.
type Factory func() *router.Router

type session struct {
	router   *router.Router
	lastSeen time.Time
	mu       sync.Mutex
}

// Manager hands out one router per session ID and evicts sessions that
// have been idle past the TTL.
type Manager struct {
	sessions      map[string]*session
	mu            sync.RWMutex
	factory       Factory
	idleTTL       time.Duration
	cleanupTicker *time.Ticker
	done          chan struct{}
	stopOnce      sync.Once
}

func NewManager(factory Factory, idleTTL time.Duration) *Manager {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}

	m := &Manager{
		sessions:      make(map[string]*session),
		factory:       factory,
		idleTTL:       idleTTL,
		cleanupTicker: time.NewTicker(5 * time.Minute),
		done:          make(chan struct{}),
	}

	go m.cleanup()

	return m
}

// Get returns the router for the given session, creating it on first use.
// An empty ID gets a fresh session; the returned ID must be sent back to
// the client either way.
func (m *Manager) Get(id string) (*router.Router, string) {
	if id == "" {
		id = uuid.New().String()
	}

	m.mu.RLock()
	s, exists := m.sessions[id]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		s, exists = m.sessions[id]
		if !exists {
			s = &session{router: m.factory()}
			m.sessions[id] = s
			logger.Info("Session created", zap.String("session_id", id))
		}
		m.mu.Unlock()
	}

	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()

	return s.router, id
}

// Remove drops one session along with its cache and memory.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		delete(m.sessions, id)
		logger.Info("Session removed", zap.String("session_id", id))
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case <-m.cleanupTicker.C:
		}

		m.mu.Lock()
		now := time.Now()
		for id, s := range m.sessions {
			s.mu.Lock()
			idle := now.Sub(s.lastSeen)
			s.mu.Unlock()
			if idle > m.idleTTL {
				delete(m.sessions, id)
				logger.Info("Idle session evicted",
					zap.String("session_id", id),
					zap.Duration("idle", idle),
				)
			}
		}
		m.mu.Unlock()
	}
}

// Stop halts idle eviction and releases the cleanup goroutine. Safe to
// call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.cleanupTicker.Stop()
		close(m.done)
	})
}
