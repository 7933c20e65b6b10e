package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Profile is the declared user type sent to the backend.
const (
	ProfileTourist = "Tourist"
	ProfileLocal   = "Local Resident"
	ProfileExpat   = "Expat"
)

// User is the authenticated identity returned by the auth endpoints.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Profile     string `json:"profile"`
}

// Store persists the session token and user profile under the config dir.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create auth dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) tokenPath() string {
	return filepath.Join(s.dir, "token")
}

func (s *Store) userPath() string {
	return filepath.Join(s.dir, "user.json")
}

// Token returns the stored session token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.tokenPath(), []byte(token), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// Clear removes the token and the stored user profile.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.tokenPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token: %w", err)
	}
	if err := os.Remove(s.userPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove user: %w", err)
	}
	return nil
}

func (s *Store) SaveUser(user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := os.WriteFile(s.userPath(), data, 0600); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	return nil
}

// User returns the stored profile, or (zero, false) when nobody is logged in.
func (s *Store) User() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.userPath())
	if err != nil {
		return User{}, false
	}
	var user User
	if err := json.Unmarshal(data, &user); err != nil {
		return User{}, false
	}
	return user, true
}
