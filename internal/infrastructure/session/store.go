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

// Store persists a session across process restarts. Save overwrites any
// previous session; Clear removes it wholesale.
type Store interface {
	Save(sess Session) error
	Load() (Session, bool, error)
	Clear() error
}

// FileStore persists the session as a JSON file with owner-only
// permissions. It is the client-side analog of the browser's durable
// storage for auth_token / refresh_token / user_data.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed session store at the given path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the session atomically via a temp-file rename
func (s *FileStore) Save(sess Session) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

// Load reads the persisted session. The second return value is false when
// no session has been saved.
func (s *FileStore) Load() (Session, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("reading session file: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// A corrupt session file is treated as logged out
		return Session{}, false, nil
	}
	return sess, sess.Authenticated(), nil
}

// Clear removes the session file
func (s *FileStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing session file: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store for tests
type MemoryStore struct {
	mu   sync.Mutex
	sess Session
	set  bool
}

// NewMemoryStore creates an empty in-memory session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Save stores the session in memory
func (s *MemoryStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = sess
	s.set = true
	return nil
}

// Load returns the stored session, if any
func (s *MemoryStore) Load() (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sess, s.set, nil
}

// Clear drops the stored session
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = Session{}
	s.set = false
	return nil
}
