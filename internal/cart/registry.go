package cart

import (
	"sync"
	"time"

	"github.com/noah-isme/backend-pos/internal/obs"
)

// Session wraps a cart with the mutex that serialises all mutations for
// that checkout session. Handlers hold the lock for the duration of a
// request, including the remote calls made during checkout.
type Session struct {
	mu        sync.Mutex
	Cart      *Cart
	ExpiresAt time.Time
}

// Lock acquires the per-session mutex.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session mutex.
func (s *Session) Unlock() { s.mu.Unlock() }

// Registry is the in-memory session store. Carts have no persisted form;
// a session that outlives its TTL is dropped on the next access.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	TTL      time.Duration
	Now      func() time.Time
}

// NewRegistry constructs a registry with the given idle TTL.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{sessions: make(map[string]*Session), TTL: ttl}
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Registry) ttl() time.Duration {
	if r.TTL <= 0 {
		return 4 * time.Hour
	}
	return r.TTL
}

// Open registers a fresh cart and returns its session.
func (r *Registry) Open() *Session {
	now := r.now()
	s := &Session{Cart: New(now), ExpiresAt: now.Add(r.ttl())}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(now)
	r.sessions[s.Cart.ID] = s
	r.observeLocked()
	return s
}

// Get resolves a session by cart id, refreshing its TTL.
func (r *Registry) Get(id string) (*Session, bool) {
	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(now)
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.ExpiresAt = now.Add(r.ttl())
	return s, true
}

// Delete discards a session.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	r.observeLocked()
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) purgeLocked(now time.Time) {
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
		}
	}
	r.observeLocked()
}

func (r *Registry) observeLocked() {
	if obs.SessionsActive != nil {
		obs.SessionsActive.Set(float64(len(r.sessions)))
	}
}
