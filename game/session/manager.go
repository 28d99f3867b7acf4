package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/minecarts/game/engine"
	"github.com/wricardo/mcp-training/minecarts/game/service"
)

var (
	ErrSessionNotFound      = service.ErrSessionNotFound
	ErrSessionAlreadyExists = service.ErrSessionExists
	ErrInvalidSessionID     = service.ErrInvalidSessionID
)

// idBytes is the entropy of generated IDs (two hex characters per byte)
const idBytes = 4

// Manager keeps simulation sessions in memory, keyed by lowercase ID, and
// mirrors them to a SessionPersistence when one is configured.
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	now         func() time.Time
	mu          sync.RWMutex
}

// NewManager creates a memory-only session manager
func NewManager() *Manager {
	return NewManagerWithPersistence(nil)
}

// NewManagerWithPersistence creates a session manager backed by persistence
func NewManagerWithPersistence(persistence SessionPersistence) *Manager {
	return &Manager{
		sessions:    make(map[string]*service.Session),
		persistence: persistence,
		now:         time.Now,
	}
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Create starts a new simulation for config. An empty id gets a generated one.
func (m *Manager) Create(id string, config *engine.LayoutConfig) (*service.Session, error) {
	if id != "" && strings.ContainsAny(id, `/\ `) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}

	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	m.mu.Lock()
	if id == "" {
		id = m.newIDLocked()
	} else if _, taken := m.sessions[normalizeID(id)]; taken {
		m.mu.Unlock()
		return nil, ErrSessionAlreadyExists
	}

	now := m.now()
	sess := &service.Session{
		ID:             id,
		Engine:         eng,
		Config:         config,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	m.sessions[normalizeID(id)] = sess
	m.mu.Unlock()

	m.persist(sess, "create")
	return sess, nil
}

// Get returns the session with id, loading it from persistence when it is
// not in memory. Lookup ignores case.
func (m *Manager) Get(id string) (*service.Session, error) {
	key := normalizeID(id)

	m.mu.RLock()
	sess, ok := m.sessions[key]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	if m.persistence == nil || !m.persistence.Exists(id) {
		return nil, ErrSessionNotFound
	}

	loaded, err := m.persistence.Load(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load persisted session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another caller may have loaded it meanwhile
	if existing, ok := m.sessions[key]; ok {
		return existing, nil
	}
	m.sessions[key] = loaded
	return loaded, nil
}

// GetOrCreate returns the session with id, creating it from config when missing
func (m *Manager) GetOrCreate(id string, config *engine.LayoutConfig) (*service.Session, error) {
	sess, err := m.Get(id)
	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, config)
	}
	return sess, err
}

// List returns the sessions in memory, oldest first
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	result := make([]*service.Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		result = append(result, sess)
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return result
}

// Delete removes a session from memory and from persistence
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	key := normalizeID(id)
	_, inMemory := m.sessions[key]
	delete(m.sessions, key)
	m.mu.Unlock()

	stored := m.persistence != nil && m.persistence.Exists(id)
	if stored {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
	}

	if !inMemory && !stored {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteFromMemory drops a session from memory and leaves persistence untouched
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := normalizeID(id)
	if _, ok := m.sessions[key]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, key)
	return nil
}

// UpdateLastAccessed stamps the session as used now and persists it
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[normalizeID(id)]
	if ok {
		sess.LastAccessedAt = m.now()
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	m.persist(sess, "access update")
	return nil
}

// Save writes one in-memory session to persistence. Without persistence it is a no-op.
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	sess, ok := m.sessions[normalizeID(id)]
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	return m.persistence.Save(sess)
}

// CleanupExpiredSessions evicts sessions idle for longer than maxAge from
// memory and returns how many were evicted. Stored copies reload on demand.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for key, sess := range m.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, key)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of sessions in memory
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// LoadPersistedSessions pulls every stored session into memory. Sessions that
// fail to restore are logged and skipped.
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	ids, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	loaded := 0
	for _, id := range ids {
		m.mu.RLock()
		_, ok := m.sessions[normalizeID(id)]
		m.mu.RUnlock()
		if ok {
			continue
		}

		sess, err := m.persistence.Load(id)
		if err != nil {
			log.Printf("Warning: Failed to load persisted session %s: %v", id, err)
			continue
		}

		m.mu.Lock()
		if _, ok := m.sessions[normalizeID(id)]; !ok {
			m.sessions[normalizeID(id)] = sess
			loaded++
		}
		m.mu.Unlock()
	}

	if loaded > 0 {
		log.Printf("Loaded %d persisted sessions from storage", loaded)
	}
	return nil
}

// SaveAllSessions persists every in-memory session and joins the failures
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	var errs []error
	for _, sess := range m.List() {
		if err := m.persistence.Save(sess); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
		}
	}
	return errors.Join(errs...)
}

// persist saves sess when persistence is configured, logging failures
func (m *Manager) persist(sess *service.Session, reason string) {
	if m.persistence == nil {
		return
	}
	if err := m.persistence.Save(sess); err != nil {
		log.Printf("Warning: Failed to persist session %s after %s: %v", sess.ID, reason, err)
	}
}

// newIDLocked returns a random hex ID not yet in use. Callers hold m.mu.
func (m *Manager) newIDLocked() string {
	buf := make([]byte, idBytes)
	for {
		rand.Read(buf)
		id := hex.EncodeToString(buf)
		if _, taken := m.sessions[id]; !taken {
			return id
		}
	}
}
