// Package session holds per-conversation state that does not belong in the
// ledger: the account selection a user still owes us, and rate limiting.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/finance-bot/internal/domain"
)

// DefaultTTL is how long a pending account selection stays valid.
const DefaultTTL = 10 * time.Minute

// Pending is a transaction waiting for the user to pick an account.
type Pending struct {
	Token      string
	Amount     int64
	Kind       domain.Kind
	Note       string
	Originator string
	Candidates []string
	ExpiresAt  time.Time
}

// Session is the state of one conversation. It is safe for concurrent use.
type Session struct {
	id  int64
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	pending *Pending

	seen time.Time // last Get; guarded by Registry.mu
}

// ID returns the conversation id.
func (s *Session) ID() int64 {
	return s.id
}

// Begin stores p as the pending selection, replacing any earlier one, and
// returns it with a fresh token and deadline.
func (s *Session) Begin(p Pending) Pending {
	p.Token = newToken()
	p.ExpiresAt = s.now().Add(s.ttl)
	p.Candidates = append([]string(nil), p.Candidates...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &p
	return p
}

// Resolve consumes the pending selection identified by token.
func (s *Session) Resolve(token string) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending == nil || s.pending.Token != token {
		return Pending{}, fmt.Errorf("token %q: %w", token, domain.ErrSelectionExpired)
	}
	p := *s.pending
	s.pending = nil
	if s.now().After(p.ExpiresAt) {
		return Pending{}, fmt.Errorf("expired at %s: %w", p.ExpiresAt.Format(time.RFC3339), domain.ErrSelectionExpired)
	}
	return p, nil
}

// Peek returns the pending selection without consuming it.
func (s *Session) Peek() (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return Pending{}, false
	}
	return *s.pending, true
}

// Registry hands out one Session per conversation id.
type Registry struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewRegistry creates a Registry whose sessions keep selections for ttl.
// A non-positive ttl means DefaultTTL.
func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[int64]*Session),
	}
}

// WithClock replaces the time source. Used by tests.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Get returns the session for id, creating it on first use.
func (r *Registry) Get(id int64) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &Session{id: id, ttl: r.ttl, now: r.now}
		r.sessions[id] = s
	}
	s.seen = r.now()
	return s
}

// Sweep drops sessions that have not been fetched for a whole TTL and hold
// no live selection, and reports how many were removed. A session a caller
// has just fetched is never dropped, so a Begin that follows Get always
// lands on the registered session.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.seen) <= r.ttl {
			continue
		}
		p, ok := s.Peek()
		if !ok || now.After(p.ExpiresAt) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Tokens end up in 64-byte callback payloads; a UUID without dashes leaves
// room for the prefix and index.
func newToken() string {
	u := uuid.New()
	return fmt.Sprintf("%x", u[:])
}
