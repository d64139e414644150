// Package session keeps the client's tokens: an in-memory view managed by
// Manager plus a Snapshot persisted between runs so the app can restart
// without re-prompting for credentials.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNoSnapshot means no session has been persisted yet.
var ErrNoSnapshot = errors.New("no saved session")

// Snapshot is the persisted session state. LastOnlineAt records the last
// moment the server confirmed the session; the offline grace window is
// measured from it.
type Snapshot struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	DeviceID         string    `json:"deviceId"`
	LastOnlineAt     time.Time `json:"lastOnlineAt"`
}

// Store persists session snapshots.
type Store interface {
	Load() (*Snapshot, error)
	Save(s *Snapshot) error
	Clear() error
}

// FileStore keeps the snapshot as a JSON file readable only by the owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}

	s := &Snapshot{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *FileStore) Save(s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	// Write-then-rename so a crash never leaves a truncated snapshot.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStore is a Store for tests.
type MemoryStore struct {
	mu sync.Mutex
	s  *Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return nil, ErrNoSnapshot
	}
	copied := *m.s
	return &copied, nil
}

func (m *MemoryStore) Save(s *Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.s = &copied
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}
