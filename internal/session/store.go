// Package session holds authentication state on both sides of the API.
//
// Store is the client's single owner of the access token, refresh token and
// signed-in user. RedisStore is the server's refresh session and access
// token denylist backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rohzyy/govai/internal/rbac"
)

var (
	ErrSessionTerminated = errors.New("session terminated")
	ErrNoRefreshToken    = errors.New("no refresh token")
)

type User struct {
	ID    string    `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name"`
	Role  rbac.Role `json:"role"`
}

type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	CSRFToken    string `json:"csrfToken,omitempty"`
}

// Session is a read-only copy of the store's state.
type Session struct {
	AccessToken         string
	RefreshToken        string
	RefreshTokenPresent bool
	CSRFToken           string
	User                *User
	Ready               bool
}

// Refresher exchanges a refresh token for a new pair. A nil user keeps the
// current one.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error)
}

type RefresherFunc func(ctx context.Context, refreshToken string) (TokenPair, *User, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (TokenPair, *User, error) {
	return f(ctx, refreshToken)
}

type Reason string

const (
	ReasonHydrated   Reason = "hydrated"
	ReasonSet        Reason = "set"
	ReasonCleared    Reason = "cleared"
	ReasonRefreshed  Reason = "refreshed"
	ReasonTerminated Reason = "terminated"
)

type Change struct {
	Reason  Reason
	Session Session
}

type Listener func(Change)

const defaultRefreshTimeout = 10 * time.Second

type Store struct {
	mu        sync.RWMutex
	state     Persisted
	ready     bool
	listeners map[int]Listener
	nextID    int
	// generation changes on every set and clear. A refresh only applies its
	// result if the generation it started from is still current.
	generation uint64
	// writeMu orders state changes together with their persisted copy.
	writeMu sync.Mutex

	persistence    Persistence
	refresher      Refresher
	refreshTimeout time.Duration
	flight         singleflight.Group
}

type Option func(*Store)

func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Store) { s.refreshTimeout = d }
}

func New(persistence Persistence, refresher Refresher, opts ...Option) *Store {
	if persistence == nil {
		persistence = NewMemoryPersistence()
	}
	s := &Store{
		persistence:    persistence,
		refresher:      refresher,
		refreshTimeout: defaultRefreshTimeout,
		listeners:      make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate loads any persisted session and marks the store ready. It never
// fails: unreadable state is logged and treated as signed out.
func (s *Store) Hydrate(ctx context.Context) {
	loaded, err := s.persistence.Load(ctx)
	if err != nil {
		log.Printf("session: hydrate: %v", err)
		loaded = Persisted{}
	}
	if loaded.AccessToken == "" {
		loaded.User = nil
	}

	s.mu.Lock()
	s.state = loaded.clone()
	s.ready = true
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(Change{Reason: ReasonHydrated, Session: snapshot})
}

func (s *Store) SetSession(ctx context.Context, pair TokenPair, user *User) {
	s.set(ctx, pair, user, ReasonSet, nil)
}

// set installs pair. With expect non-nil it is a no-op unless the
// generation still equals *expect; the return value says whether it applied.
func (s *Store) set(ctx context.Context, pair TokenPair, user *User, reason Reason, expect *uint64) bool {
	s.writeMu.Lock()
	s.mu.Lock()
	if expect != nil && s.generation != *expect {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return false
	}
	next := Persisted{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		CSRFToken:    pair.CSRFToken,
		User:         user,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = s.state.RefreshToken
	}
	if next.CSRFToken == "" {
		next.CSRFToken = s.state.CSRFToken
	}
	if next.User == nil {
		next.User = s.state.User
	}
	s.state = next.clone()
	s.ready = true
	s.generation++
	toSave := s.state.clone()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persistence.Save(ctx, toSave); err != nil {
		log.Printf("session: persist: %v", err)
	}
	s.writeMu.Unlock()
	s.notify(Change{Reason: reason, Session: snapshot})
	return true
}

// ClearSession drops the session. Listeners hear about it only if there was
// one.
func (s *Store) ClearSession(ctx context.Context) {
	s.clear(ctx, ReasonCleared)
}

func (s *Store) clear(ctx context.Context, reason Reason) {
	s.clearIf(ctx, reason, nil)
}

func (s *Store) clearIf(ctx context.Context, reason Reason, expect *uint64) bool {
	s.writeMu.Lock()
	s.mu.Lock()
	if expect != nil && s.generation != *expect {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return false
	}
	hadSession := s.state.AccessToken != "" || s.state.RefreshToken != "" || s.state.User != nil
	s.state = Persisted{}
	s.generation++
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.persistence.Clear(ctx); err != nil {
		log.Printf("session: clear persisted: %v", err)
	}
	s.writeMu.Unlock()
	if hadSession || reason == ReasonTerminated {
		s.notify(Change{Reason: reason, Session: snapshot})
	}
	return true
}

// Refresh exchanges the refresh token once for all concurrent callers. The
// exchange outlives any single caller's context; a caller that gives up only
// stops waiting for it.
func (s *Store) Refresh(ctx context.Context) error {
	ch := s.flight.DoChan("refresh", func() (any, error) {
		detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return nil, s.exchange(detached)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) exchange(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.state.RefreshToken
	started := s.generation
	s.mu.RUnlock()

	if refreshToken == "" || s.refresher == nil {
		s.clearIf(ctx, ReasonTerminated, &started)
		return fmt.Errorf("%w: %w", ErrSessionTerminated, ErrNoRefreshToken)
	}
	pair, user, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil || pair.AccessToken == "" {
		if err == nil {
			err = errors.New("empty access token")
		}
		// A session installed while the exchange ran is not ours to end.
		s.clearIf(ctx, ReasonTerminated, &started)
		return fmt.Errorf("%w: %w", ErrSessionTerminated, err)
	}
	if !s.set(ctx, pair, user, ReasonRefreshed, &started) {
		// Logged out or replaced meanwhile; the exchanged pair is dropped.
		if s.Snapshot().AccessToken == "" {
			return ErrSessionTerminated
		}
	}
	return nil
}

// Subscribe registers l and returns a func that removes it. Listeners run
// synchronously on the goroutine that changed the session.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *Store) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.User == nil {
		return nil
	}
	u := *s.state.User
	return &u
}

func (s *Store) snapshotLocked() Session {
	state := s.state.clone()
	return Session{
		AccessToken:         state.AccessToken,
		RefreshToken:        state.RefreshToken,
		RefreshTokenPresent: state.RefreshToken != "",
		CSRFToken:           state.CSRFToken,
		User:                state.User,
		Ready:               s.ready,
	}
}

func (s *Store) notify(change Change) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.RUnlock()

	for _, l := range listeners {
		l(change)
	}
}
