package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"
)

// Persisted is what survives a restart of the client.
type Persisted struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	CSRFToken    string `json:"csrfToken,omitempty"`
	User         *User  `json:"user,omitempty"`
}

func (p Persisted) clone() Persisted {
	if p.User != nil {
		u := *p.User
		p.User = &u
	}
	return p
}

// Persistence stores a copy of the session. Load returns a zero value when
// nothing was saved.
type Persistence interface {
	Load(ctx context.Context) (Persisted, error)
	Save(ctx context.Context, p Persisted) error
	Clear(ctx context.Context) error
}

type MemoryPersistence struct {
	mu    sync.Mutex
	value Persisted
	// Err, when set, is returned by every call.
	Err error
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{}
}

func (m *MemoryPersistence) Load(context.Context) (Persisted, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Persisted{}, m.Err
	}
	return m.value.clone(), nil
}

func (m *MemoryPersistence) Save(_ context.Context, p Persisted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.value = p.clone()
	return nil
}

func (m *MemoryPersistence) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.value = Persisted{}
	return nil
}

// FilePersistence keeps the session as JSON on disk. Writes go through a
// temp file and rename so a crash never leaves a half-written file.
type FilePersistence struct {
	path string
}

func NewFilePersistence(path string) *FilePersistence {
	return &FilePersistence{path: path}
}

func (f *FilePersistence) Load(context.Context) (Persisted, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Persisted{}, nil
	}
	if err != nil {
		return Persisted{}, fmt.Errorf("read session file: %w", err)
	}
	var p Persisted
	if err := json.Unmarshal(raw, &p); err != nil {
		return Persisted{}, fmt.Errorf("decode session file: %w", err)
	}
	return p, nil
}

func (f *FilePersistence) Save(_ context.Context, p Persisted) error {
	payload, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (f *FilePersistence) Clear(context.Context) error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
