package console

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stageportal/internal/client"
	"stageportal/internal/domain/user"
)

var ErrNoSession = errors.New("not logged in")

// Session is the authenticated context of the command line tool.
type Session struct {
	BaseURL   string         `json:"base_url"`
	Token     string         `json:"token"`
	Role      user.Role      `json:"role"`
	Profile   client.Profile `json:"profile"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt.IsZero() || !now.Before(s.ExpiresAt)
}

// NewSession builds a session from a login result. The expiry falls back
// to expiresIn when the server did not send an absolute time.
func NewSession(baseURL string, result *client.LoginResult, now time.Time) (*Session, error) {
	role, ok := user.ParseRole(result.User.Role)
	if !ok {
		return nil, fmt.Errorf("unknown role %q", result.User.Role)
	}
	expiresAt := result.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(time.Duration(result.ExpiresIn) * time.Second)
	}
	return &Session{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     result.Token,
		Role:      role,
		Profile:   result.User,
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

type SessionStore struct {
	path string
	now  func() time.Time
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path, now: time.Now}
}

// DefaultSessionPath is session.json under the user config directory.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "stageportal", "session.json"), nil
}

func (s *SessionStore) Path() string {
	return s.path
}

// Load returns ErrNoSession when nothing is stored or the token expired.
func (s *SessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.Token == "" || session.Expired(s.now()) {
		return nil, ErrNoSession
	}
	return &session, nil
}

// Save writes the session through a temp file and rename.
func (s *SessionStore) Save(session *Session) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Logout forgets the stored session. It is not an error to log out twice.
func (s *SessionStore) Logout() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
