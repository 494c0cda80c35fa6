package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"shopmunim-backend/internal/domain"
)

// Storage persists the token and user as one pair.
type Storage interface {
	// Load returns an empty token and nil user when nothing is stored.
	Load(ctx context.Context) (string, *domain.User, error)
	Save(ctx context.Context, token string, user domain.User) error
	Clear(ctx context.Context) error
}

type storedUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	ActiveRole   string    `json:"active_role"`
	AdminRoles   []string  `json:"admin_roles,omitempty"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	Verified     bool      `json:"verified"`
	PINSet       bool      `json:"pin_set"`
	CreatedAt    time.Time `json:"created_at"`
}

type document struct {
	Token string      `json:"token"`
	User  *storedUser `json:"user"`
}

func toStored(u domain.User) *storedUser {
	return &storedUser{
		ID:           u.ID,
		Name:         u.Name,
		Phone:        u.Phone,
		ActiveRole:   string(u.ActiveRole),
		AdminRoles:   u.AdminRoles,
		ProfilePhoto: u.ProfilePhoto,
		Verified:     u.Verified,
		PINSet:       u.PINSet,
		CreatedAt:    u.CreatedAt,
	}
}

func (s storedUser) domain() domain.User {
	return domain.User{
		ID:           s.ID,
		Name:         s.Name,
		Phone:        s.Phone,
		ActiveRole:   domain.UserRole(s.ActiveRole),
		AdminRoles:   s.AdminRoles,
		ProfilePhoto: s.ProfilePhoto,
		Verified:     s.Verified,
		PINSet:       s.PINSet,
		CreatedAt:    s.CreatedAt,
	}
}

// FileStorage keeps the session in a single JSON file. Writes go through a
// temp file and a rename so a crash never leaves a token without its user.
type FileStorage struct {
	Path string
	mu   sync.Mutex
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{Path: path}
}

func (f *FileStorage) Load(_ context.Context) (string, *domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("read session file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", nil, fmt.Errorf("decode session file: %w", err)
	}
	if doc.Token == "" || doc.User == nil {
		return "", nil, nil
	}
	u := doc.User.domain()
	return doc.Token, &u, nil
}

func (f *FileStorage) Save(_ context.Context, token string, user domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	raw, err := json.Marshal(document{Token: token, User: toStored(user)})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (f *FileStorage) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// MemoryStorage is an in-process Storage, mostly for tests.
type MemoryStorage struct {
	mu    sync.Mutex
	token string
	user  *domain.User
}

func (m *MemoryStorage) Load(_ context.Context) (string, *domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || m.user == nil {
		return "", nil, nil
	}
	u := cloneUser(*m.user)
	return m.token, &u, nil
}

func (m *MemoryStorage) Save(_ context.Context, token string, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := cloneUser(user)
	m.token, m.user = token, &u
	return nil
}

func (m *MemoryStorage) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.user = "", nil
	return nil
}
