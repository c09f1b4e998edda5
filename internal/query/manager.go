package query

import (
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
)

// DefaultSessionID is used when a client does not name its session.
const DefaultSessionID = "default"

// Manager owns the sessions of the HTTP service, keyed by client supplied
// id. Sessions idle for longer than the configured TTL are evicted on the
// next Get.
type Manager struct {
	engine   engine.Engine
	registry *dataset.Registry
	opts     Options
	ttl      time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

func NewManager(eng engine.Engine, registry *dataset.Registry, opts Options, ttl time.Duration) *Manager {
	return &Manager{
		engine:   eng,
		registry: registry,
		opts:     opts,
		ttl:      ttl,
		sessions: make(map[string]*entry),
	}
}

// Get returns the session for id, creating it on first use.
func (m *Manager) Get(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.evictLocked(now)
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{session: NewSession(id, m.engine, m.registry, m.opts)}
		m.sessions[id] = e
	}
	e.lastSeen = now
	return e.session
}

func (m *Manager) evictLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) > m.ttl && !e.session.State().Loading {
			delete(m.sessions, id)
		}
	}
}
