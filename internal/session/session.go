// Package session persists the signed-in user and bearer token between runs.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/health-diary/internal/model"
)

// defaultTTL applies when a token carries no exp claim.
const defaultTTL = 15 * time.Minute

// Poster is the slice of the API client the session needs.
type Poster interface {
	Post(ctx context.Context, path string, body, out any) error
}

type state struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      *model.User `json:"user,omitempty"`
}

// Store keeps the session file and an in-memory copy of it.
type Store struct {
	path string

	mu  sync.RWMutex
	cur state
	now func() time.Time
}

// DefaultPath returns session.json under the user config directory.
func DefaultPath() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "health-diary", "session.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "health-diary", "session.json")
}

// Open loads the session at path; a missing file yields an empty session.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath()
	}
	s := &Store{path: path, now: time.Now}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if err := json.Unmarshal(b, &s.cur); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Token returns the bearer token, or "" when absent or expired.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur.Token == "" || s.now().After(s.cur.ExpiresAt) {
		return ""
	}
	return s.cur.Token
}

// User returns the signed-in user, if any.
func (s *Store) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur.User == nil || s.cur.Token == "" || s.now().After(s.cur.ExpiresAt) {
		return model.User{}, false
	}
	return *s.cur.User, true
}

// Authenticated reports whether a non-expired token is held.
func (s *Store) Authenticated() bool { return s.Token() != "" }

// Save stores token and user; expiry is read from the token's exp claim.
func (s *Store) Save(token string, user model.User) error {
	if user.Avatar == "" && user.Email != "" {
		user.Avatar = model.AvatarURL(user.Email)
	}
	st := state{Token: token, ExpiresAt: s.expiry(token), User: &user}
	if err := s.write(st); err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = st
	s.mu.Unlock()
	return nil
}

// Clear forgets the session and removes the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.cur = state{}
	s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

type authResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login authenticates against the backend and saves the resulting session.
func (s *Store) Login(ctx context.Context, api Poster, email, password string) (model.User, error) {
	req := map[string]string{"email": strings.TrimSpace(email), "password": password}
	return s.authenticate(ctx, api, "/auth/login", req)
}

// Register creates an account on the backend and saves the resulting session.
func (s *Store) Register(ctx context.Context, api Poster, name, email, password string) (model.User, error) {
	req := map[string]string{"name": strings.TrimSpace(name), "email": strings.TrimSpace(email), "password": password}
	return s.authenticate(ctx, api, "/auth/register", req)
}

// Logout clears the local session.
func (s *Store) Logout() error { return s.Clear() }

func (s *Store) authenticate(ctx context.Context, api Poster, path string, req map[string]string) (model.User, error) {
	var resp authResponse
	if err := api.Post(ctx, path, req, &resp); err != nil {
		return model.User{}, err
	}
	if resp.Token == "" {
		return model.User{}, errors.New("backend returned no token")
	}
	if err := s.Save(resp.Token, resp.User); err != nil {
		return model.User{}, err
	}
	u, _ := s.User()
	return u, nil
}

// expiry parses exp without verifying the signature; the backend owns verification.
func (s *Store) expiry(token string) time.Time {
	exp := s.now().Add(defaultTTL)
	var claims jwt.RegisteredClaims
	_, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(token, &claims)
	if err == nil && claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return exp
}

func (s *Store) write(st state) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}
