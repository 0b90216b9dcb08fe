package memory

import (
	"kb-assistant-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

// SessionRepository holds session state in process memory. Sessions never expire; pending document context
// carries its own expiry inside the state.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository() *SessionRepository {
	// No default expiration; the janitor is not needed.
	c := cache.New(cache.NoExpiration, 0)
	return &SessionRepository{
		cache: c,
	}
}

func (r *SessionRepository) Save(session *store.SessionState) {
	r.cache.Set(session.UserID, session, cache.NoExpiration)
}

func (r *SessionRepository) Get(userID string) (*store.SessionState, bool) {
	if x, found := r.cache.Get(userID); found {
		return x.(*store.SessionState), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(userID string) {
	r.cache.Delete(userID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
