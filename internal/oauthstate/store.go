// Package oauthstate holds the short-lived CSRF state tokens issued during
// account linking. Each token maps back to the Slack workspace/user that
// started the flow and is consumed exactly once by the callback. The store is
// an explicit dependency of the connect/callback handlers rather than ambient
// global state.
package oauthstate

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

// Store lookup failures, distinct so the callback can report expiry
// separately from an unknown (possibly forged) token.
var (
	ErrStateNotFound = errors.New("oauth state not found")
	ErrStateExpired  = errors.New("oauth state expired")
)

// entry is one pending linking attempt.
type entry struct {
	workspaceID string
	userID      string
	createdAt   time.Time
}

// Store is a mutex-guarded in-memory state map with a bounded TTL per entry.
// Safe for concurrent use. Entries are pruned opportunistically on Insert.
type Store struct {
	mu  sync.Mutex
	m   map[string]entry
	ttl time.Duration

	now func() time.Time // test seam
}

// New returns a Store whose entries expire after ttl. A non-positive ttl
// defaults to 10 minutes.
func New(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		m:   make(map[string]entry),
		ttl: ttl,
		now: time.Now,
	}
}

// Insert generates a fresh random state token, stores it against the given
// workspace/user, and returns it. Expired entries are pruned on the way.
func (s *Store) Insert(workspaceID, userID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.m {
		if now.Sub(e.createdAt) > s.ttl {
			delete(s.m, k)
		}
	}
	s.m[token] = entry{workspaceID: workspaceID, userID: userID, createdAt: now}
	return token, nil
}

// Consume validates a state token and removes it, returning the workspace and
// user it was issued for. A token is single-use: a second Consume returns
// ErrStateNotFound. An entry past its TTL returns ErrStateExpired.
func (s *Store) Consume(token string) (workspaceID, userID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[token]
	if !ok {
		return "", "", ErrStateNotFound
	}
	delete(s.m, token)

	if s.now().Sub(e.createdAt) > s.ttl {
		return "", "", ErrStateExpired
	}
	return e.workspaceID, e.userID, nil
}

// Len reports the number of pending entries. Used by tests.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// randomToken returns 32 bytes of crypto randomness, URL-safe encoded.
func randomToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
