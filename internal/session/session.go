// Package session owns the signed-in user for a client process: who is
// logged in, in which role, and whether that has been confirmed by the
// server.
package session

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"shopmunim-backend/internal/client"
	"shopmunim-backend/internal/domain"
)

var (
	ErrNoProvider = errors.New("session: auth api and storage are required")
	ErrClosed     = errors.New("session: store is closed")
)

const (
	defaultVerifyTimeout = 5 * time.Second
	defaultSafetyTimeout = 3 * time.Second
)

// AuthAPI is the slice of the REST client the store needs.
type AuthAPI interface {
	GetMe(ctx context.Context) (domain.User, error)
	SwitchRole(ctx context.Context, role domain.UserRole) (domain.User, error)
	UpdateProfile(ctx context.Context, patch client.ProfileUpdate) (domain.User, error)
}

type State struct {
	Loading       bool
	Authenticated bool
	Token         string
	User          *domain.User
}

// Result reports the outcome of a user action without returning an error.
type Result struct {
	Success bool
	Message string
}

type ProfilePatch struct {
	Name  *string
	Phone *string
}

// verifyTask is one background token check. Once discarded, its result is
// never applied.
type verifyTask struct {
	cancel    context.CancelFunc
	done      chan struct{}
	discarded bool
}

type Store struct {
	api     AuthAPI
	storage Storage
	logger  *slog.Logger

	verifyTimeout time.Duration
	safetyTimeout time.Duration

	// ioMu serialises storage calls and is always taken before mu. Storage
	// is never touched while mu is held.
	ioMu   sync.Mutex
	mu     sync.Mutex
	state  State
	gen    uint64
	task   *verifyTask
	closed bool

	ready     chan struct{}
	readyOnce sync.Once
}

type Option func(*Store)

func WithVerifyTimeout(d time.Duration) Option {
	return func(s *Store) { s.verifyTimeout = d }
}

func WithSafetyTimeout(d time.Duration) Option {
	return func(s *Store) { s.safetyTimeout = d }
}

func New(api AuthAPI, storage Storage, logger *slog.Logger, opts ...Option) (*Store, error) {
	if api == nil || storage == nil {
		return nil, ErrNoProvider
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		api:           api,
		storage:       storage,
		logger:        logger,
		verifyTimeout: defaultVerifyTimeout,
		safetyTimeout: defaultSafetyTimeout,
		state:         State{Loading: true},
		ready:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start restores the persisted session. Loading ends when the restore
// finishes or the safety timer fires, whichever is first.
func (s *Store) Start(ctx context.Context) {
	restored := make(chan struct{})
	go func() {
		defer close(restored)
		if err := s.CheckAuth(ctx); err != nil {
			s.logger.Warn("restore session failed", "err", err)
		}
	}()
	go func() {
		timer := time.NewTimer(s.safetyTimeout)
		defer timer.Stop()
		select {
		case <-restored:
		case <-timer.C:
			s.logger.Warn("session restore still running, releasing loading state")
		case <-ctx.Done():
		}
		s.finishLoading()
	}()
}

// Ready is closed once the initial loading state is over.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

func (s *Store) finishLoading() {
	s.readyOnce.Do(func() {
		s.mu.Lock()
		s.state.Loading = false
		s.mu.Unlock()
		close(s.ready)
	})
}

// CheckAuth loads the stored pair and, if present, trusts it immediately
// while a background task confirms the token with the server.
func (s *Store) CheckAuth(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	token, user, err := s.storage.Load(ctx)
	if err != nil {
		return err
	}
	if token == "" || user == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.discardTaskLocked()
	s.state.Authenticated = true
	s.state.Token = token
	u := cloneUser(*user)
	s.state.User = &u
	s.changedLocked()

	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.verifyTimeout)
	t := &verifyTask{cancel: cancel, done: make(chan struct{})}
	s.task = t
	go s.verify(vctx, t, token)
	return nil
}

// VerifyDone is closed when the current verification task has finished.
// It is already closed if no task is running.
func (s *Store) VerifyDone() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.task == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.task.done
}

func (s *Store) verify(ctx context.Context, t *verifyTask, token string) {
	defer close(t.done)
	defer t.cancel()

	user, err := s.api.GetMe(ctx)

	s.mu.Lock()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.discarded = true
	}
	if t.discarded || s.task != t {
		s.mu.Unlock()
		s.logger.Debug("token verification result discarded")
		return
	}
	s.task = nil

	pctx := context.WithoutCancel(ctx)
	switch {
	case err == nil:
		u := cloneUser(user)
		s.state.User = &u
		gen := s.changedLocked()
		s.mu.Unlock()
		if err := s.persist(pctx, gen, func(ctx context.Context) error {
			return s.storage.Save(ctx, token, u)
		}); err != nil {
			s.logger.Warn("persist verified user failed", "err", err)
		}
	case client.IsUnauthorized(err):
		s.resetLocked()
		gen := s.changedLocked()
		s.mu.Unlock()
		s.logger.Info("stored token rejected, logging out")
		if err := s.persist(pctx, gen, s.storage.Clear); err != nil {
			s.logger.Warn("clear session failed", "err", err)
		}
	default:
		s.mu.Unlock()
		s.logger.Warn("token verification failed, keeping local session", "err", err)
	}
}

// persist runs write only if no state change happened after generation gen.
// A newer change persists its own state.
func (s *Store) persist(ctx context.Context, gen uint64, write func(context.Context) error) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	s.mu.Lock()
	current := s.gen == gen
	s.mu.Unlock()
	if !current {
		return nil
	}
	return write(ctx)
}

func (s *Store) changedLocked() uint64 {
	s.gen++
	return s.gen
}

// Login persists the pair first; memory changes only if the save succeeds.
func (s *Store) Login(ctx context.Context, token string, user domain.User) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	if s.isClosed() {
		return ErrClosed
	}
	u := cloneUser(user)
	if err := s.storage.Save(ctx, token, u); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.discardTaskLocked()
	s.state.Authenticated = true
	s.state.Token = token
	s.state.User = &u
	s.changedLocked()
	return nil
}

// Logout clears memory and storage. Calling it while logged out is a no-op.
func (s *Store) Logout(ctx context.Context) error {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.discardTaskLocked()
	s.resetLocked()
	s.changedLocked()
	s.mu.Unlock()

	return s.storage.Clear(ctx)
}

func (s *Store) SwitchRole(ctx context.Context, role domain.UserRole) Result {
	token, ok := s.currentToken()
	if !ok {
		return Result{Message: "please log in again"}
	}
	user, err := s.api.SwitchRole(ctx, role)
	if err != nil {
		s.logger.Warn("switch role failed", "role", role, "err", err)
		return Result{Message: client.Message(err)}
	}
	return s.applyUser(ctx, token, func(domain.User) domain.User { return user })
}

// UpdateProfile sends patch to the server, then merges the server copy and
// the patch into the local user. Patch fields win.
func (s *Store) UpdateProfile(ctx context.Context, patch ProfilePatch) Result {
	token, ok := s.currentToken()
	if !ok {
		return Result{Message: "please log in again"}
	}
	returned, err := s.api.UpdateProfile(ctx, client.ProfileUpdate{Name: patch.Name, Phone: patch.Phone})
	if err != nil {
		s.logger.Warn("update profile failed", "err", err)
		return Result{Message: client.Message(err)}
	}

	return s.applyUser(ctx, token, func(current domain.User) domain.User {
		merged := mergeUser(current, returned)
		if patch.Name != nil {
			merged.Name = *patch.Name
		}
		if patch.Phone != nil {
			merged.Phone = *patch.Phone
		}
		return merged
	})
}

// applyUser replaces the in-memory user with next(current) if the session
// still holds token, then persists it outside the state lock.
func (s *Store) applyUser(ctx context.Context, token string, next func(current domain.User) domain.User) Result {
	s.mu.Lock()
	if s.closed || s.state.Token != token || s.state.User == nil {
		s.mu.Unlock()
		return Result{Message: "session changed, please try again"}
	}
	u := cloneUser(next(*s.state.User))
	s.state.User = &u
	gen := s.changedLocked()
	s.mu.Unlock()

	if err := s.persist(ctx, gen, func(ctx context.Context) error {
		return s.storage.Save(ctx, token, u)
	}); err != nil {
		s.logger.Warn("persist user failed", "err", err)
	}
	return Result{Success: true}
}

// Snapshot returns a copy that callers may keep.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	if s.state.User != nil {
		u := cloneUser(*s.state.User)
		out.User = &u
	}
	return out
}

// Close cancels background work. Later mutating calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.discardTaskLocked()
	s.mu.Unlock()
	s.finishLoading()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) currentToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.state.Authenticated {
		return "", false
	}
	return s.state.Token, true
}

func (s *Store) discardTaskLocked() {
	if s.task == nil {
		return
	}
	s.task.discarded = true
	s.task.cancel()
	s.task = nil
}

func (s *Store) resetLocked() {
	s.state.Authenticated = false
	s.state.Token = ""
	s.state.User = nil
}

// mergeUser overlays the non-zero fields of over onto base.
func mergeUser(base, over domain.User) domain.User {
	out := base
	if over.ID != "" {
		out.ID = over.ID
	}
	if over.Name != "" {
		out.Name = over.Name
	}
	if over.Phone != "" {
		out.Phone = over.Phone
	}
	if over.ActiveRole != "" {
		out.ActiveRole = over.ActiveRole
	}
	if over.AdminRoles != nil {
		out.AdminRoles = over.AdminRoles
	}
	if over.ProfilePhoto != "" {
		out.ProfilePhoto = over.ProfilePhoto
	}
	if over.Verified {
		out.Verified = true
	}
	if over.PINSet {
		out.PINSet = true
	}
	if !over.CreatedAt.IsZero() {
		out.CreatedAt = over.CreatedAt
	}
	return cloneUser(out)
}

func cloneUser(u domain.User) domain.User {
	u.AdminRoles = slices.Clone(u.AdminRoles)
	return u
}
