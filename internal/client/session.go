// Package client is the chat client core: session persistence, calls to
// the relay's endpoints, and the polling loop that renders the history.
package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/relaychat/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// Storage slots holding the session.
const (
	SlotToken = "chat_token"
	SlotUser  = "chat_user"
)

// SessionStore is the client-local key/value storage a session lives in.
type SessionStore interface {
	Get(slot string) (string, error)
	Set(slot, value string) error
	Clear(slot string) error
}

// Sessions loads and saves the session through a SessionStore.
type Sessions struct {
	store SessionStore
}

// NewSessions wraps a store.
func NewSessions(store SessionStore) *Sessions {
	return &Sessions{store: store}
}

// Load returns the stored session. It returns nil, without error, unless
// both slots hold a non-empty value.
func (s *Sessions) Load() (*domain.Session, error) {
	token, err := s.store.Get(SlotToken)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SlotToken, err)
	}
	user, err := s.store.Get(SlotUser)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SlotUser, err)
	}
	sess := &domain.Session{User: user, Token: token}
	if !sess.Valid() {
		return nil, nil
	}
	return sess, nil
}

// Save writes both slots.
func (s *Sessions) Save(sess *domain.Session) error {
	if !sess.Valid() {
		return errors.New("refusing to save an incomplete session")
	}
	if err := s.store.Set(SlotToken, sess.Token); err != nil {
		return fmt.Errorf("write %s: %w", SlotToken, err)
	}
	if err := s.store.Set(SlotUser, sess.User); err != nil {
		return fmt.Errorf("write %s: %w", SlotUser, err)
	}
	return nil
}

// Clear removes both slots. Both are attempted even if the first fails.
func (s *Sessions) Clear() error {
	return errors.Join(s.store.Clear(SlotToken), s.store.Clear(SlotUser))
}

// TokenExpiry reads the exp claim of a JWT without verifying it. It is for
// display; the relay and identity service decide whether a token is valid.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// MemoryStore keeps slots in memory.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

func (m *MemoryStore) Get(slot string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[slot], nil
}

func (m *MemoryStore) Set(slot, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[slot] = value
	return nil
}

func (m *MemoryStore) Clear(slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.slots, slot)
	return nil
}

// FileStore keeps slots in a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a store backed by path. The file is created on the
// first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultSessionPath is the session file under the user's config directory.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "relaychat", "session.json"), nil
}

func (f *FileStore) Get(slot string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots, err := f.read()
	if err != nil {
		return "", err
	}
	return slots[slot], nil
}

func (f *FileStore) Set(slot, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots, err := f.read()
	if err != nil {
		return err
	}
	slots[slot] = value
	return f.write(slots)
}

func (f *FileStore) Clear(slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := slots[slot]; !ok {
		return nil
	}
	delete(slots, slot)
	return f.write(slots)
}

func (f *FileStore) read() (map[string]string, error) {
	slots := make(map[string]string)
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return slots, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if len(data) == 0 {
		return slots, nil
	}
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return slots, nil
}

func (f *FileStore) write(slots map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := json.MarshalIndent(slots, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
