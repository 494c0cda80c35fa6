package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shopmunim-backend/internal/client"
	"shopmunim-backend/internal/domain"
)

type fakeAPI struct {
	mu       sync.Mutex
	me       func(ctx context.Context) (domain.User, error)
	switchFn func(ctx context.Context, role domain.UserRole) (domain.User, error)
	updateFn func(ctx context.Context, patch client.ProfileUpdate) (domain.User, error)
}

func (f *fakeAPI) GetMe(ctx context.Context) (domain.User, error) {
	f.mu.Lock()
	fn := f.me
	f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeAPI) SwitchRole(ctx context.Context, role domain.UserRole) (domain.User, error) {
	return f.switchFn(ctx, role)
}

func (f *fakeAPI) UpdateProfile(ctx context.Context, patch client.ProfileUpdate) (domain.User, error) {
	return f.updateFn(ctx, patch)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var localUser = domain.User{ID: "u1", Name: "Local Name", Phone: "9876543210", ActiveRole: domain.RoleCustomer}

func newStore(t *testing.T, api AuthAPI, storage Storage, opts ...Option) *Store {
	t.Helper()
	s, err := New(api, storage, quietLogger(), opts...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seeded(t *testing.T) *MemoryStorage {
	t.Helper()
	m := &MemoryStorage{}
	if err := m.Save(context.Background(), "tok", localUser); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return m
}

func waitVerify(t *testing.T, s *Store) {
	t.Helper()
	select {
	case <-s.VerifyDone():
	case <-time.After(2 * time.Second):
		t.Fatal("verification did not finish")
	}
}

func TestNewRequiresProviders(t *testing.T) {
	if _, err := New(nil, &MemoryStorage{}, nil); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
	if _, err := New(&fakeAPI{}, nil, nil); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestCheckAuthVerifiedUserOverwritesLocal(t *testing.T) {
	storage := seeded(t)
	release := make(chan struct{})
	api := &fakeAPI{me: func(context.Context) (domain.User, error) {
		<-release
		return domain.User{ID: "u1", Name: "Server Name", Phone: "9876543210", ActiveRole: domain.RoleShopOwner}, nil
	}}
	s := newStore(t, api, storage)

	if err := s.CheckAuth(context.Background()); err != nil {
		t.Fatalf("check auth: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Authenticated || snap.User.Name != "Local Name" {
		t.Fatalf("expected optimistic local session, got %+v", snap)
	}

	close(release)
	waitVerify(t, s)

	snap = s.Snapshot()
	if snap.User.Name != "Server Name" || snap.User.ActiveRole != domain.RoleShopOwner {
		t.Fatalf("server copy not applied: %+v", snap.User)
	}
	_, stored, _ := storage.Load(context.Background())
	if stored == nil || stored.Name != "Server Name" {
		t.Fatalf("server copy not persisted: %+v", stored)
	}
}

func TestCheckAuthUnauthorizedLogsOut(t *testing.T) {
	storage := seeded(t)
	api := &fakeAPI{me: func(context.Context) (domain.User, error) {
		return domain.User{}, &client.APIError{Status: http.StatusUnauthorized, Message: "invalid token"}
	}}
	s := newStore(t, api, storage)

	if err := s.CheckAuth(context.Background()); err != nil {
		t.Fatalf("check auth: %v", err)
	}
	waitVerify(t, s)

	if snap := s.Snapshot(); snap.Authenticated || snap.User != nil || snap.Token != "" {
		t.Fatalf("expected logged out, got %+v", snap)
	}
	if tok, _, _ := storage.Load(context.Background()); tok != "" {
		t.Fatal("storage not cleared")
	}
}

func TestCheckAuthNetworkFailureKeepsSession(t *testing.T) {
	api := &fakeAPI{me: func(context.Context) (domain.User, error) {
		return domain.User{}, errors.New("dial tcp: connection refused")
	}}
	s := newStore(t, api, seeded(t))

	if err := s.CheckAuth(context.Background()); err != nil {
		t.Fatalf("check auth: %v", err)
	}
	waitVerify(t, s)

	snap := s.Snapshot()
	if !snap.Authenticated || snap.User.Name != "Local Name" {
		t.Fatalf("offline session should survive, got %+v", snap)
	}
}

func TestVerificationPastDeadlineIsDiscarded(t *testing.T) {
	api := &fakeAPI{me: func(context.Context) (domain.User, error) {
		// Ignores the context on purpose and answers late.
		time.Sleep(80 * time.Millisecond)
		return domain.User{ID: "u1", Name: "Late Name"}, nil
	}}
	s := newStore(t, api, seeded(t), WithVerifyTimeout(10*time.Millisecond))

	if err := s.CheckAuth(context.Background()); err != nil {
		t.Fatalf("check auth: %v", err)
	}
	waitVerify(t, s)

	if snap := s.Snapshot(); snap.User == nil || snap.User.Name != "Local Name" {
		t.Fatalf("late result must not be applied, got %+v", snap.User)
	}
}

func TestLoginSupersedesVerification(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{me: func(context.Context) (domain.User, error) {
		<-release
		return domain.User{}, &client.APIError{Status: http.StatusUnauthorized}
	}}
	storage := seeded(t)
	s := newStore(t, api, storage)

	if err := s.CheckAuth(context.Background()); err != nil {
		t.Fatalf("check auth: %v", err)
	}
	done := s.VerifyDone()

	fresh := domain.User{ID: "u2", Name: "Fresh", ActiveRole: domain.RoleShopOwner}
	if err := s.Login(context.Background(), "tok-2", fresh); err != nil {
		t.Fatalf("login: %v", err)
	}
	close(release)
	<-done

	snap := s.Snapshot()
	if !snap.Authenticated || snap.Token != "tok-2" || snap.User.ID != "u2" {
		t.Fatalf("stale 401 must not log out the new session, got %+v", snap)
	}
	if tok, _, _ := storage.Load(context.Background()); tok != "tok-2" {
		t.Fatalf("stored token = %q", tok)
	}
}

type blockingStorage struct {
	MemoryStorage
	unblock chan struct{}
}

func (b *blockingStorage) Load(ctx context.Context) (string, *domain.User, error) {
	select {
	case <-b.unblock:
	case <-ctx.Done():
		return "", nil, ctx.Err()
	}
	return b.MemoryStorage.Load(ctx)
}

// gatedStorage blocks Save until release is closed.
type gatedStorage struct {
	MemoryStorage
	saving  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStorage) Save(ctx context.Context, token string, user domain.User) error {
	g.once.Do(func() { close(g.saving) })
	<-g.release
	return g.MemoryStorage.Save(ctx, token, user)
}

func TestSnapshotNotBlockedBySlowStorage(t *testing.T) {
	storage := &gatedStorage{saving: make(chan struct{}), release: make(chan struct{})}
	if err := storage.MemoryStorage.Save(context.Background(), "tok", localUser); err != nil {
		t.Fatalf("seed: %v", err)
	}
	api := &fakeAPI{me: func(context.Context) (domain.User, error) {
		return domain.User{ID: "u1", Name: "Server Name", ActiveRole: domain.RoleCustomer}, nil
	}}
	s := newStore(t, api, storage)
	if err := s.CheckAuth(context.Background()); err != nil {
		t.Fatalf("check auth: %v", err)
	}
	done := s.VerifyDone()

	select {
	case <-storage.saving:
	case <-time.After(2 * time.Second):
		t.Fatal("verified user was never persisted")
	}
	snapped := make(chan State, 1)
	go func() { snapped <- s.Snapshot() }()
	select {
	case snap := <-snapped:
		if snap.User == nil || snap.User.Name != "Server Name" {
			t.Fatalf("snapshot should already hold the verified user, got %+v", snap.User)
		}
	case <-time.After(time.Second):
		t.Fatal("snapshot blocked while storage was writing")
	}

	close(storage.release)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("verification did not finish")
	}
	if _, stored, _ := storage.Load(context.Background()); stored == nil || stored.Name != "Server Name" {
		t.Fatalf("verified user not persisted: %+v", stored)
	}
}

func TestStaleWriteSkippedAfterLogout(t *testing.T) {
	storage := &MemoryStorage{}
	s := newStore(t, &fakeAPI{}, storage)
	if err := s.Login(context.Background(), "tok", localUser); err != nil {
		t.Fatalf("login: %v", err)
	}
	s.mu.Lock()
	stale := s.gen
	s.mu.Unlock()

	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	wrote := false
	if err := s.persist(context.Background(), stale, func(ctx context.Context) error {
		wrote = true
		return storage.Save(ctx, "tok", localUser)
	}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if wrote {
		t.Fatal("write from before logout should be skipped")
	}
	if tok, _, _ := storage.Load(context.Background()); tok != "" {
		t.Fatalf("session came back after logout, token = %q", tok)
	}
}

func TestStartSafetyTimerReleasesLoading(t *testing.T) {
	storage := &blockingStorage{unblock: make(chan struct{})}
	defer close(storage.unblock)
	api := &fakeAPI{me: func(context.Context) (domain.User, error) { return localUser, nil }}
	s := newStore(t, api, storage, WithSafetyTimeout(20*time.Millisecond))

	if !s.Snapshot().Loading {
		t.Fatal("store should start in loading state")
	}
	s.Start(context.Background())
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("safety timer did not release loading")
	}
	if s.Snapshot().Loading {
		t.Fatal("loading should be false after Ready")
	}
}

func TestStartWithoutStoredSession(t *testing.T) {
	api := &fakeAPI{me: func(context.Context) (domain.User, error) {
		t.Error("no verification expected without a stored token")
		return domain.User{}, nil
	}}
	s := newStore(t, api, &MemoryStorage{})
	s.Start(context.Background())
	<-s.Ready()
	if snap := s.Snapshot(); snap.Authenticated || snap.Loading {
		t.Fatalf("unexpected state %+v", snap)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	storage := seeded(t)
	s := newStore(t, &fakeAPI{}, storage)
	if err := s.Login(context.Background(), "tok", localUser); err != nil {
		t.Fatalf("login: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Logout(context.Background()); err != nil {
			t.Fatalf("logout %d: %v", i, err)
		}
	}
	if snap := s.Snapshot(); snap.Authenticated || snap.User != nil {
		t.Fatalf("unexpected state %+v", snap)
	}
}

func TestSwitchRole(t *testing.T) {
	api := &fakeAPI{switchFn: func(_ context.Context, role domain.UserRole) (domain.User, error) {
		if role == domain.RoleAdmin {
			return domain.User{}, &client.APIError{Status: http.StatusForbidden, Message: "you do not have access to this role"}
		}
		u := localUser
		u.ActiveRole = role
		return u, nil
	}}
	storage := &MemoryStorage{}
	s := newStore(t, api, storage)

	if res := s.SwitchRole(context.Background(), domain.RoleShopOwner); res.Success {
		t.Fatal("switching while logged out should fail")
	}
	if err := s.Login(context.Background(), "tok", localUser); err != nil {
		t.Fatalf("login: %v", err)
	}

	res := s.SwitchRole(context.Background(), domain.RoleAdmin)
	if res.Success || res.Message != "you do not have access to this role" {
		t.Fatalf("unexpected failure result %+v", res)
	}
	res = s.SwitchRole(context.Background(), domain.RoleShopOwner)
	if !res.Success || s.Snapshot().User.ActiveRole != domain.RoleShopOwner {
		t.Fatalf("switch failed: %+v", res)
	}
	_, stored, _ := storage.Load(context.Background())
	if stored.ActiveRole != domain.RoleShopOwner {
		t.Fatal("new role not persisted")
	}
}

func TestUpdateProfilePatchWins(t *testing.T) {
	api := &fakeAPI{updateFn: func(_ context.Context, patch client.ProfileUpdate) (domain.User, error) {
		// The server echoes a stale name but a new photo.
		return domain.User{ID: "u1", Name: "Server Name", ProfilePhoto: "data:image/png;base64,AA"}, nil
	}}
	s := newStore(t, api, &MemoryStorage{})
	if err := s.Login(context.Background(), "tok", localUser); err != nil {
		t.Fatalf("login: %v", err)
	}

	name := "Patched Name"
	res := s.UpdateProfile(context.Background(), ProfilePatch{Name: &name})
	if !res.Success {
		t.Fatalf("update failed: %+v", res)
	}
	u := s.Snapshot().User
	if u.Name != "Patched Name" || u.ProfilePhoto == "" || u.Phone != "9876543210" {
		t.Fatalf("unexpected merge %+v", u)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newStore(t, &fakeAPI{}, &MemoryStorage{})
	admin := localUser
	admin.AdminRoles = []string{"support"}
	if err := s.Login(context.Background(), "tok", admin); err != nil {
		t.Fatalf("login: %v", err)
	}
	snap := s.Snapshot()
	snap.User.Name = "mutated"
	snap.User.AdminRoles[0] = "mutated"
	again := s.Snapshot()
	if again.User.Name != "Local Name" || again.User.AdminRoles[0] != "support" {
		t.Fatalf("snapshot leaked internal state: %+v", again.User)
	}
}

func TestClosedStoreRejectsMutations(t *testing.T) {
	s := newStore(t, &fakeAPI{}, &MemoryStorage{})
	_ = s.Close()
	if err := s.Login(context.Background(), "tok", localUser); !errors.Is(err, ErrClosed) {
		t.Fatalf("login after close: %v", err)
	}
	if err := s.CheckAuth(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("check auth after close: %v", err)
	}
	select {
	case <-s.Ready():
	default:
		t.Fatal("close should release Ready")
	}
}

func TestFileStorage(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStorage(filepath.Join(dir, "session.json"))
	ctx := context.Background()

	tok, u, err := fs.Load(ctx)
	if err != nil || tok != "" || u != nil {
		t.Fatalf("empty load: %q %v %v", tok, u, err)
	}

	if err := fs.Save(ctx, "tok", localUser); err != nil {
		t.Fatalf("save: %v", err)
	}
	tok, u, err = fs.Load(ctx)
	if err != nil || tok != "tok" || u.ID != "u1" || u.ActiveRole != domain.RoleCustomer {
		t.Fatalf("load after save: %q %+v %v", tok, u, err)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}

	if err := fs.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := fs.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if tok, _, _ := fs.Load(ctx); tok != "" {
		t.Fatal("token survived clear")
	}

	if err := os.WriteFile(fs.Path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := fs.Load(ctx); err == nil {
		t.Fatal("expected decode error for corrupt file")
	}
}
