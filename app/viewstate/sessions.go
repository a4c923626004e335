package viewstate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Sessions keeps one ViewState per browser session. Idle sessions expire and
// release their resources.
type Sessions struct {
	mu     sync.Mutex
	states *cache.Cache
}

func NewSessions(idle time.Duration) *Sessions {
	return newSessions(idle, idle/2)
}

// newSessions with a zero cleanup interval never purges in the background.
func newSessions(idle, cleanup time.Duration) *Sessions {
	c := cache.New(idle, cleanup)
	c.OnEvicted(func(id string, v any) {
		slog.Debug("session expired", "session", id)
		v.(*ViewState).Close()
	})
	return &Sessions{states: c}
}

func NewSessionID() string {
	return uuid.NewString()
}

// Get returns the state for id, creating it if needed, and extends its idle
// deadline.
func (s *Sessions) Get(id string) *ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, found := s.states.Get(id); found {
		s.states.Set(id, v, cache.DefaultExpiration)
		return v.(*ViewState)
	}
	// An expired entry the janitor has not purged yet still holds resources.
	s.states.Delete(id)
	st := New()
	s.states.Set(id, st, cache.DefaultExpiration)
	return st
}

func (s *Sessions) Drop(id string) {
	s.states.Delete(id)
}

func (s *Sessions) Len() int {
	return s.states.ItemCount()
}
