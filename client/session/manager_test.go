package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T, fn RefreshFunc, opts ManagerOptions) (*Manager, *Store) {
	t.Helper()

	opts.Logger = zerolog.Nop()
	store, _, _ := testStore()
	m := NewManager(store, fn, opts)

	if err := m.SetSession(&Record{AccessToken: "a1", RefreshToken: "r1"}, false); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return m, store
}

func TestRefreshSingleFlight(t *testing.T) {
	var calls int32
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond)
		return &RefreshResult{AccessToken: "a2", RefreshToken: "r2"}, nil
	}
	m, _ := newTestManager(t, fn, ManagerOptions{})

	const n = 10
	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tokens[i], errs[i] = m.Refresh(context.Background())
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("refresh network calls = %d, want 1", got)
	}
	for i := range n {
		if errs[i] != nil {
			t.Fatalf("waiter %d: %v", i, errs[i])
		}
		if tokens[i] != "a2" {
			t.Errorf("waiter %d token = %q, want a2", i, tokens[i])
		}
	}
}

func TestRefreshRotation(t *testing.T) {
	var mu sync.Mutex
	var presented []string
	next := 2
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		mu.Lock()
		defer mu.Unlock()
		presented = append(presented, refreshToken)
		res := &RefreshResult{
			AccessToken:  fmt.Sprintf("a%d", next),
			RefreshToken: fmt.Sprintf("r%d", next),
		}
		next++
		return res, nil
	}
	m, store := newTestManager(t, fn, ManagerOptions{})

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(presented) != 2 || presented[0] != "r1" || presented[1] != "r2" {
		t.Errorf("presented refresh tokens = %v, want [r1 r2]", presented)
	}

	rec, _ := store.Load()
	if rec == nil || rec.RefreshToken != "r3" {
		t.Errorf("persisted refresh token = %+v, want r3", rec)
	}
}

func TestRefreshMissingRotationClearsSession(t *testing.T) {
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		return &RefreshResult{AccessToken: "a2"}, nil
	}
	m, store := newTestManager(t, fn, ManagerOptions{})

	_, err := m.Refresh(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if rec, _ := store.Load(); rec != nil {
		t.Errorf("session should be cleared, got %+v", rec)
	}
	if m.AccessToken() != "" {
		t.Error("mirror should be cleared")
	}
}

func TestRefreshRejectedClearsSession(t *testing.T) {
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		return nil, fmt.Errorf("%w: status 401", ErrRefreshRejected)
	}
	m, store := newTestManager(t, fn, ManagerOptions{})

	_, err := m.Refresh(context.Background())
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("err = %v, want ErrSessionExpired", err)
	}
	if rec, _ := store.Load(); rec != nil {
		t.Error("session should be cleared after server rejection")
	}
}

func TestRefreshTransientErrorKeepsSession(t *testing.T) {
	transient := errors.New("connection refused")
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		return nil, transient
	}
	m, store := newTestManager(t, fn, ManagerOptions{})

	_, err := m.Refresh(context.Background())
	if !errors.Is(err, transient) {
		t.Fatalf("err = %v, want the transient error", err)
	}
	if errors.Is(err, ErrSessionExpired) {
		t.Error("transient failure must not be reported as terminal")
	}
	if rec, _ := store.Load(); rec == nil || rec.RefreshToken != "r1" {
		t.Errorf("session should survive a transient failure, got %+v", rec)
	}
}

func TestRefreshTimeoutResolvesWaiters(t *testing.T) {
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m, store := newTestManager(t, fn, ManagerOptions{RefreshTimeout: 30 * time.Millisecond})

	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v, want deadline exceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("refresh waiter hung past the bounded timeout")
	}

	if rec, _ := store.Load(); rec == nil {
		t.Error("a timed-out refresh should not destroy the session")
	}
}

func TestRefreshWaiterContextCancel(t *testing.T) {
	release := make(chan struct{})
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		<-release
		return &RefreshResult{AccessToken: "a2", RefreshToken: "r2"}, nil
	}
	m, _ := newTestManager(t, fn, ManagerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Refresh(ctx)
		done <- err
	}()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The shared attempt keeps running and still lands its result.
	close(release)
	deadline := time.After(2 * time.Second)
	for m.AccessToken() != "a2" {
		select {
		case <-deadline:
			t.Fatal("shared refresh outcome never applied")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagersAreIndependent(t *testing.T) {
	var calls1, calls2 int32
	slow := func(counter *int32) RefreshFunc {
		return func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
			atomic.AddInt32(counter, 1)
			time.Sleep(30 * time.Millisecond)
			return &RefreshResult{AccessToken: "a2", RefreshToken: "r2"}, nil
		}
	}

	m1, _ := newTestManager(t, slow(&calls1), ManagerOptions{})
	m2, _ := newTestManager(t, slow(&calls2), ManagerOptions{})

	var wg sync.WaitGroup
	for _, m := range []*Manager{m1, m2} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Refresh(context.Background())
		}()
	}
	wg.Wait()

	if calls1 != 1 || calls2 != 1 {
		t.Errorf("calls = (%d, %d), want one per manager", calls1, calls2)
	}
}

func TestRefreshWithoutSession(t *testing.T) {
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		t.Fatal("refresh must not be attempted without a session")
		return nil, nil
	}
	store, _, _ := testStore()
	m := NewManager(store, fn, ManagerOptions{Logger: zerolog.Nop()})

	if _, err := m.Refresh(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v, want ErrNotAuthenticated", err)
	}
}

func TestOnChangeNotifications(t *testing.T) {
	var mu sync.Mutex
	var seen []*Record
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		return &RefreshResult{AccessToken: "a2", RefreshToken: "r2"}, nil
	}

	store, _, _ := testStore()
	m := NewManager(store, fn, ManagerOptions{
		Logger: zerolog.Nop(),
		OnChange: func(rec *Record) {
			mu.Lock()
			seen = append(seen, rec)
			mu.Unlock()
		},
	})

	if err := m.SetSession(&Record{AccessToken: "a1", RefreshToken: "r1"}, true); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.Clear(); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("change notifications = %d, want 3", len(seen))
	}
	if seen[0] == nil || seen[0].AccessToken != "a1" {
		t.Errorf("login notification = %+v", seen[0])
	}
	if seen[1] == nil || seen[1].AccessToken != "a2" {
		t.Errorf("refresh notification = %+v", seen[1])
	}
	if seen[2] != nil {
		t.Errorf("sign-out notification = %+v, want nil", seen[2])
	}
}

func TestRefreshPreservesStorageTier(t *testing.T) {
	fn := func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		return &RefreshResult{AccessToken: "a2", RefreshToken: "r2"}, nil
	}

	store, durable, _ := testStore()
	m := NewManager(store, fn, ManagerOptions{Logger: zerolog.Nop()})
	if err := m.SetSession(&Record{AccessToken: "a1", RefreshToken: "r1"}, true); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, ok := durable.Get(storageKey); !ok {
		t.Error("refreshed session should stay in the durable tier")
	}
	rec, persistent := store.Load()
	if rec == nil || rec.AccessToken != "a2" || !persistent {
		t.Errorf("load = %+v persistent=%v, want refreshed durable record", rec, persistent)
	}
}
