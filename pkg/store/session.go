package store

import (
	"sync"
	"time"
)

// Turn roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single message in a session. Immutable once appended.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Trace     TraceLog  `json:"trace,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session holds the ordered turn history for one session id.
// The session owns its turns; appends within a session are serialized while
// distinct sessions proceed independently.
type Session struct {
	ID    string `json:"id"`
	Turns []Turn `json:"turns"`

	mu sync.Mutex
}

func NewSession(id string) *Session {
	return &Session{ID: id}
}

// Append adds a turn in submission order.
func (s *Session) Append(turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	s.Turns = append(s.Turns, turn)
}

// Recent returns a copy of the last n turns, oldest first.
func (s *Session) Recent(n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || len(s.Turns) == 0 {
		return nil
	}
	start := len(s.Turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(s.Turns)-start)
	copy(out, s.Turns[start:])
	return out
}

// Len returns the number of turns recorded so far.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Turns)
}
