package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"kakeibo/internal/cache"
)

// User is the identity attached to an authenticated request. ID is the
// canonical user id every ledger row is keyed by.
type User struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Session is a logged in browser.
type Session struct {
	User      User
	ExpiresAt time.Time
}

var ErrNoSession = errors.New("no session")

// SessionStore keeps sessions in memory, keyed by a random token. Sessions
// are lost on restart and users log in again.
type SessionStore struct {
	sessions *cache.LRUCache[Session]
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore holds up to maxSessions sessions living ttl each.
func NewSessionStore(maxSessions int, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: cache.NewLRUCache[Session](maxSessions, ttl),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Cache exposes the backing cache for periodic cleanup.
func (s *SessionStore) Cache() *cache.LRUCache[Session] {
	return s.sessions
}

// Create stores a session for u and returns its token.
func (s *SessionStore) Create(u User) (string, Session, error) {
	token, err := newToken()
	if err != nil {
		return "", Session{}, err
	}
	sess := Session{User: u, ExpiresAt: s.now().Add(s.ttl)}
	s.sessions.Set(token, sess)
	return token, sess, nil
}

func (s *SessionStore) Get(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	sess, ok := s.sessions.Get(token)
	if !ok {
		return Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *SessionStore) Delete(token string) {
	s.sessions.Delete(token)
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
