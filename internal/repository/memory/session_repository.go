package memory

import (
	"ai-analyst-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository holds live conversation sessions in process memory.
// Sessions never expire within the process lifetime; eviction is an external
// concern (a deployment that needs it can front this with a TTL).
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	c := cache.New(cache.NoExpiration, 0)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.ID, session, cache.NoExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}
