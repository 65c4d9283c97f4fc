// Package session provides the in-process turn memory for the orchestrator.
package session

import (
	"sync"
	"time"

	"ai-analyst-be/internal/repository/memory"
	"ai-analyst-be/pkg/store"
)

// Manager hands out sessions by opaque id, creating them on first reference.
// Creation is serialized so two concurrent calls for a new id observe the
// same session; per-session turn ordering is guaranteed by the session's own
// lock, so distinct sessions proceed fully in parallel.
type Manager struct {
	sessionRepo *memory.SessionRepository
	mu          sync.Mutex
}

// NewManager creates a new session manager
func NewManager(sessionRepo *memory.SessionRepository) *Manager {
	return &Manager{sessionRepo: sessionRepo}
}

// GetOrCreate retrieves the session for id, creating it if unseen.
func (m *Manager) GetOrCreate(id string) *store.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, found := m.sessionRepo.Get(id); found {
		return session
	}
	session := store.NewSession(id)
	m.sessionRepo.Save(session)
	return session
}

// AppendUser appends a user turn in submission order.
func (m *Manager) AppendUser(id, text string) *store.Session {
	session := m.GetOrCreate(id)
	session.Append(store.Turn{
		Role:      store.RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
	})
	return session
}

// AppendAssistant appends an assistant turn carrying the answer's trace.
func (m *Manager) AppendAssistant(id, text string, traceLog store.TraceLog) *store.Session {
	session := m.GetOrCreate(id)
	session.Append(store.Turn{
		Role:      store.RoleAssistant,
		Text:      text,
		Trace:     traceLog,
		CreatedAt: time.Now(),
	})
	return session
}

// Recent returns up to n most recent turns for id, oldest first.
func (m *Manager) Recent(id string, n int) []store.Turn {
	return m.GetOrCreate(id).Recent(n)
}
