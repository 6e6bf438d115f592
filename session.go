package auth

import (
	"fmt"
	"sync"
)

// SessionStatus is the explicit state of a Session.
type SessionStatus string

const (
	// SessionAnonymous has no token.
	SessionAnonymous SessionStatus = "anonymous"
	// SessionRestoring has a token but the user record is still pending.
	SessionRestoring SessionStatus = "restoring"
	// SessionAuthenticated has both token and user record.
	SessionAuthenticated SessionStatus = "authenticated"
)

// Session is the client's belief about who is logged in. An empty Token and
// a nil User mean absent.
type Session struct {
	Token string `json:"token,omitempty"`
	User  *User  `json:"user,omitempty"`
}

// Status derives the session state from which fields are present.
func (s Session) Status() SessionStatus {
	switch {
	case s.Token == "":
		return SessionAnonymous
	case s.User == nil:
		return SessionRestoring
	default:
		return SessionAuthenticated
	}
}

// HasToken reports whether a token is present.
func (s Session) HasToken() bool {
	return s.Token != ""
}

func (s Session) clone() Session {
	return Session{Token: s.Token, User: s.User.Clone()}
}

func (s Session) String() string {
	user := "<nil>"
	if s.User != nil {
		user = s.User.ID.String()
	}
	return fmt.Sprintf("status=%s token=%s user=%s", s.Status(), TokenPreview(s.Token, 12), user)
}

// SessionListener receives every published session.
type SessionListener func(Session)

type subscription struct {
	id uint64
	fn SessionListener
}

// SessionState is the single in-memory authority over the current session.
// Publications are serialized and delivered synchronously to subscribers in
// registration order. Listeners may read Current but must not call Replace
// from inside the callback.
type SessionState struct {
	publishMu sync.Mutex

	mu      sync.RWMutex
	current Session
	epoch   uint64
	nextID  uint64
	subs    []subscription
}

// NewSessionState returns a state holding initial.
func NewSessionState(initial Session) *SessionState {
	return &SessionState{current: initial.clone()}
}

// Current returns a snapshot of the session.
func (s *SessionState) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.clone()
}

// Epoch identifies the current token generation. It increases every time a
// publication changes the token.
func (s *SessionState) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// Replace overwrites the whole session and notifies subscribers.
func (s *SessionState) Replace(next Session) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	subs := s.apply(next)
	s.mu.Unlock()

	s.notify(subs, next)
}

// ReplaceIf publishes next only when the epoch still equals epoch. It
// reports whether the publication happened.
func (s *SessionState) ReplaceIf(epoch uint64, next Session) bool {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	subs := s.apply(next)
	s.mu.Unlock()

	s.notify(subs, next)
	return true
}

// Reset publishes the anonymous session and always starts a new epoch, so
// work that captured the previous epoch can no longer publish.
func (s *SessionState) Reset() {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	s.epoch++
	subs := s.apply(Session{})
	s.mu.Unlock()

	s.notify(subs, Session{})
}

// Subscribe registers fn, delivers the current session to it immediately and
// every future publication after that. The returned func unsubscribes.
func (s *SessionState) Subscribe(fn SessionListener) func() {
	if fn == nil {
		return func() {}
	}

	s.publishMu.Lock()
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	current := s.current.clone()
	s.mu.Unlock()
	fn(current)
	s.publishMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *SessionState) apply(next Session) []subscription {
	if next.Token != s.current.Token {
		s.epoch++
	}
	s.current = next.clone()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	return subs
}

func (s *SessionState) notify(subs []subscription, next Session) {
	for _, sub := range subs {
		sub.fn(next.clone())
	}
}

// TokenPreview returns the first n characters of token followed by an
// ellipsis, never the full credential.
func TokenPreview(token string, n int) string {
	if token == "" {
		return "<none>"
	}
	if n <= 0 || len(token) <= n {
		return token[:min(len(token), 4)] + "..."
	}
	return token[:n] + "..."
}
