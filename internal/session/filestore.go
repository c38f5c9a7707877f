package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a durable Store backed by a single JSON file. The file is
// replaced atomically (temp file + rename) so token and role always land
// together, and a crash mid-write leaves the previous session intact.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded bool
	cur    Session
}

// NewFileStore creates a store persisting to path. The file is read
// lazily on first access in a new process lifetime.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.cur
}

func (s *FileStore) Set(token string, role Role) error {
	if token == "" && role == RoleAdmin {
		return ErrAdminWithoutToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()

	next := normalize(Session{Token: token, Role: role})
	if err := s.write(next); err != nil {
		return err
	}
	s.cur = next
	return nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = true
	s.cur = Session{Role: RoleStandard}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("session: clear: %w", err)
	}
	return nil
}

// load reads the file once per process lifetime. Caller holds s.mu.
func (s *FileStore) load() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.cur = Session{Role: RoleStandard}

	b, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var stored Session
	if err := json.Unmarshal(b, &stored); err != nil {
		return
	}
	s.cur = normalize(stored)
}

// write replaces the file atomically. Caller holds s.mu.
func (s *FileStore) write(sess Session) error {
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("session: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("session: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("session: rename: %w", err)
	}
	return nil
}
