package sessions

import (
	"context"
	"errors"
	"sync"

	"github.com/jrsteele09/cyberguard-client/token"
	"github.com/rs/zerolog/log"
)

// State is where the client sits in the authentication lifecycle.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return "unknown"
}

// ExpiredFunc is called after a session has been ended by an authentication failure.
type ExpiredFunc func(ctx context.Context)

// Session is the only owner of the token pair. Everything else reads and writes tokens through it.
type Session struct {
	store token.Store

	mu        sync.RWMutex
	state     State
	userID    string
	onExpired []ExpiredFunc
}

// New restores the session from store: a stored token starts the session Authenticated.
func New(ctx context.Context, store token.Store) (*Session, error) {
	if store == nil {
		return nil, errors.New("[sessions.New] token store is required")
	}
	s := &Session{store: store, state: Anonymous}
	if _, ok := store.Read(ctx); ok {
		s.state = Authenticated
	}
	return s, nil
}

// Token returns the current Session Token, or "" and false when there is none.
func (s *Session) Token(ctx context.Context) (string, bool) {
	pair, ok := s.store.Read(ctx)
	if !ok {
		return "", false
	}
	return pair.SessionToken, true
}

// Tokens returns the whole pair.
func (s *Session) Tokens(ctx context.Context) (token.Pair, bool) {
	return s.store.Read(ctx)
}

// SetTokens overwrites the pair and marks the session Authenticated.
func (s *Session) SetTokens(ctx context.Context, pair token.Pair) error {
	if err := s.store.Save(ctx, pair); err != nil {
		log.Err(err).Msg("Failed to save tokens")
		return err
	}
	s.setState(Authenticated)
	return nil
}

// Clear removes the pair and any cached identity. It never fails from the caller's point of view.
func (s *Session) Clear(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		log.Err(err).Msg("Failed to clear tokens")
	}
	s.mu.Lock()
	s.state = Anonymous
	s.userID = ""
	s.mu.Unlock()
}

// Expire clears the session and notifies every OnExpired listener.
func (s *Session) Expire(ctx context.Context) {
	s.Clear(ctx)

	s.mu.RLock()
	listeners := append([]ExpiredFunc(nil), s.onExpired...)
	s.mu.RUnlock()

	log.Info().Msg("Session expired")
	for _, fn := range listeners {
		fn(ctx)
	}
}

// OnExpired registers fn to be called when the session is ended by an authentication failure.
func (s *Session) OnExpired(fn ExpiredFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = append(s.onExpired, fn)
}

// BeginAuthentication moves an Anonymous session to Authenticating. An already Authenticated
// session keeps its state until the new credentials are saved.
func (s *Session) BeginAuthentication() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Anonymous {
		s.state = Authenticating
	}
}

// AbortAuthentication returns an Authenticating session to Anonymous.
func (s *Session) AbortAuthentication() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Authenticating {
		s.state = Anonymous
	}
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// UserID is the identifier of the last fetched user profile, if any.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) SetUserID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = id
}
