package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rohzyy/govai/internal/rbac"
)

var citizen = &User{ID: "u-1", Email: "asha@example.com", Name: "Asha", Role: rbac.RoleUser}

func recordChanges(s *Store) (*[]Reason, func()) {
	var mu sync.Mutex
	reasons := make([]Reason, 0)
	unsubscribe := s.Subscribe(func(c Change) {
		mu.Lock()
		defer mu.Unlock()
		reasons = append(reasons, c.Reason)
	})
	return &reasons, unsubscribe
}

func TestHydrateWithoutSessionIsReady(t *testing.T) {
	s := New(NewMemoryPersistence(), nil)
	if s.Ready() {
		t.Fatalf("store should not be ready before hydrate")
	}
	s.Hydrate(context.Background())
	if !s.Ready() || s.User() != nil {
		t.Fatalf("expected ready and signed out, got ready=%v user=%+v", s.Ready(), s.User())
	}
}

func TestHydrateIgnoresUserWithoutToken(t *testing.T) {
	p := NewMemoryPersistence()
	_ = p.Save(context.Background(), Persisted{User: citizen})
	s := New(p, nil)
	s.Hydrate(context.Background())
	if s.User() != nil {
		t.Fatalf("user without access token must not be restored")
	}
}

func TestHydrateSurvivesPersistenceFailure(t *testing.T) {
	p := NewMemoryPersistence()
	p.Err = errors.New("disk on fire")
	s := New(p, nil)
	s.Hydrate(context.Background())
	if !s.Ready() || s.User() != nil {
		t.Fatalf("expected ready and signed out")
	}
}

func TestSetSessionPersistsAndNotifies(t *testing.T) {
	p := NewMemoryPersistence()
	s := New(p, nil)
	reasons, unsubscribe := recordChanges(s)
	defer unsubscribe()
	ctx := context.Background()

	s.SetSession(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1", CSRFToken: "c1"}, citizen)

	saved, _ := p.Load(ctx)
	want := Persisted{AccessToken: "a1", RefreshToken: "r1", CSRFToken: "c1", User: citizen}
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Fatalf("persisted mismatch (-want +got):\n%s", diff)
	}
	snap := s.Snapshot()
	if !snap.RefreshTokenPresent || snap.User.Role != rbac.RoleUser {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if diff := cmp.Diff([]Reason{ReasonSet}, *reasons); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(nil, nil)
	s.SetSession(context.Background(), TokenPair{AccessToken: "a1"}, &User{ID: "u-1", Role: rbac.RoleUser})
	snap := s.Snapshot()
	snap.User.Role = rbac.RoleAdmin
	if s.User().Role != rbac.RoleUser {
		t.Fatalf("mutating a snapshot leaked into the store")
	}
}

func TestClearSessionIsIdempotent(t *testing.T) {
	p := NewMemoryPersistence()
	s := New(p, nil)
	ctx := context.Background()
	s.SetSession(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1"}, citizen)
	reasons, unsubscribe := recordChanges(s)
	defer unsubscribe()

	s.ClearSession(ctx)
	s.ClearSession(ctx)

	if diff := cmp.Diff([]Reason{ReasonCleared}, *reasons); diff != "" {
		t.Fatalf("expected a single cleared notification (-want +got):\n%s", diff)
	}
	saved, _ := p.Load(ctx)
	if saved.AccessToken != "" || s.User() != nil {
		t.Fatalf("session not cleared")
	}
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := New(nil, nil)
	reasons, unsubscribe := recordChanges(s)
	unsubscribe()
	unsubscribe()
	s.SetSession(context.Background(), TokenPair{AccessToken: "a"}, citizen)
	if len(*reasons) != 0 {
		t.Fatalf("listener called after unsubscribe")
	}
}

func TestRefreshIsSingleFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	refresher := RefresherFunc(func(ctx context.Context, token string) (TokenPair, *User, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil, nil
	})
	s := New(nil, refresher)
	ctx := context.Background()
	s.SetSession(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1"}, citizen)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Refresh(ctx)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("refresh failed: %v", err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one refresh exchange, got %d", got)
	}
	snap := s.Snapshot()
	if snap.AccessToken != "a2" || snap.RefreshToken != "r2" || snap.User.ID != citizen.ID {
		t.Fatalf("unexpected session after refresh: %+v", snap)
	}
}

func TestCancelledCallerDoesNotCancelRefresh(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var exchangeErr atomic.Value
	refresher := RefresherFunc(func(ctx context.Context, token string) (TokenPair, *User, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			exchangeErr.Store(err)
		}
		return TokenPair{AccessToken: "a2"}, nil, nil
	})
	s := New(nil, refresher)
	s.SetSession(context.Background(), TokenPair{AccessToken: "a1", RefreshToken: "r1"}, citizen)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	<-started
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected caller to see context.Canceled, got %v", err)
	}

	waiter := make(chan error, 1)
	go func() { waiter <- s.Refresh(context.Background()) }()
	close(release)
	if err := <-waiter; err != nil {
		t.Fatalf("shared refresh failed: %v", err)
	}
	if exchangeErr.Load() != nil {
		t.Fatalf("exchange context was cancelled by a caller: %v", exchangeErr.Load())
	}
	if s.Snapshot().AccessToken != "a2" {
		t.Fatalf("refresh result not applied")
	}
}

func TestRefreshFailureTerminatesSession(t *testing.T) {
	refresher := RefresherFunc(func(context.Context, string) (TokenPair, *User, error) {
		return TokenPair{}, nil, errors.New("refresh token revoked")
	})
	s := New(nil, refresher)
	ctx := context.Background()
	s.SetSession(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1"}, citizen)
	reasons, unsubscribe := recordChanges(s)
	defer unsubscribe()

	err := s.Refresh(ctx)
	if !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
	if s.User() != nil || s.Snapshot().AccessToken != "" {
		t.Fatalf("session should be cleared")
	}
	if diff := cmp.Diff([]Reason{ReasonTerminated}, *reasons); diff != "" {
		t.Fatalf("reasons mismatch (-want +got):\n%s", diff)
	}
}

func TestLogoutDuringRefreshStaysLoggedOut(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	refresher := RefresherFunc(func(context.Context, string) (TokenPair, *User, error) {
		close(entered)
		<-release
		return TokenPair{AccessToken: "new-access", RefreshToken: "new-refresh"}, citizen, nil
	})
	persistence := NewMemoryPersistence()
	s := New(persistence, refresher)
	ctx := context.Background()
	s.SetSession(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1"}, citizen)

	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	<-entered
	s.ClearSession(ctx)
	close(release)

	if err := <-done; !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
	if s.User() != nil || s.Snapshot().AccessToken != "" {
		t.Fatalf("refresh resurrected the session: %+v", s.Snapshot())
	}
	persisted, err := persistence.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if persisted.AccessToken != "" || persisted.User != nil {
		t.Fatalf("persisted copy restored after logout: %+v", persisted)
	}
}

func TestLoginDuringRefreshKeepsNewSession(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	refresher := RefresherFunc(func(context.Context, string) (TokenPair, *User, error) {
		close(entered)
		<-release
		return TokenPair{AccessToken: "stale-access"}, nil, nil
	})
	s := New(nil, refresher)
	ctx := context.Background()
	s.SetSession(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1"}, citizen)

	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx) }()
	<-entered
	s.SetSession(ctx, TokenPair{AccessToken: "fresh-login", RefreshToken: "r2"}, citizen)
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := s.Snapshot().AccessToken; got != "fresh-login" {
		t.Fatalf("access token = %q, want fresh-login", got)
	}
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	s := New(nil, RefresherFunc(func(context.Context, string) (TokenPair, *User, error) {
		t.Fatalf("refresher must not be called without a refresh token")
		return TokenPair{}, nil, nil
	}))
	s.SetSession(context.Background(), TokenPair{AccessToken: "a1"}, citizen)
	err := s.Refresh(context.Background())
	if !errors.Is(err, ErrNoRefreshToken) || !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected terminated/no refresh token, got %v", err)
	}
}

func TestFilePersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	p := NewFilePersistence(path)
	ctx := context.Background()

	empty, err := p.Load(ctx)
	if err != nil || empty.AccessToken != "" {
		t.Fatalf("missing file should load empty: %+v, %v", empty, err)
	}

	s := New(p, nil)
	s.SetSession(ctx, TokenPair{AccessToken: "a1", RefreshToken: "r1", CSRFToken: "c1"}, citizen)

	restored := New(NewFilePersistence(path), nil)
	restored.Hydrate(ctx)
	if restored.User() == nil || restored.User().Email != citizen.Email {
		t.Fatalf("session not restored from disk: %+v", restored.Snapshot())
	}

	s.ClearSession(ctx)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected session file removed, stat err = %v", err)
	}
	if err := p.Clear(ctx); err != nil {
		t.Fatalf("clearing twice should not fail: %v", err)
	}
}

func TestFilePersistenceCorruptFileHydratesSignedOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s := New(NewFilePersistence(path), nil)
	s.Hydrate(context.Background())
	if !s.Ready() || s.User() != nil {
		t.Fatalf("corrupt file should hydrate to signed out")
	}
}
