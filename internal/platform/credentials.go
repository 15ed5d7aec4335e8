package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// UploadScope is the OAuth scope required to upload videos.
const UploadScope = "https://www.googleapis.com/auth/youtube.upload"

// deviceAuthURL is the device authorization endpoint for installed apps.
const deviceAuthURL = "https://oauth2.googleapis.com/device/code"

// Static errors for credential management.
var (
	// ErrNoCredentials is returned when no strategy produced a token.
	ErrNoCredentials = errors.New("platform: no usable credentials")
	// ErrNoClientConfig is returned when a strategy needs client secrets that were not loaded.
	ErrNoClientConfig = errors.New("platform: client secrets not configured")
)

// LoadOAuthConfig reads a client secrets file ("installed" or "web").
func LoadOAuthConfig(secretsFile string) (*oauth2.Config, error) {
	data, err := os.ReadFile(secretsFile) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("platform: read client secrets: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, UploadScope)
	if err != nil {
		return nil, fmt.Errorf("platform: parse client secrets: %w", err)
	}
	if cfg.Endpoint.DeviceAuthURL == "" {
		cfg.Endpoint.DeviceAuthURL = deviceAuthURL
	}
	return cfg, nil
}

// TokenFile persists a token as JSON.
type TokenFile struct {
	path string
}

// NewTokenFile creates a TokenFile at path.
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Path returns the file location.
func (f *TokenFile) Path() string {
	return f.path
}

// storedToken accepts both the oauth2 field names and the "token" field
// written by other OAuth client libraries.
type storedToken struct {
	AccessToken  string    `json:"access_token,omitempty"`
	Token        string    `json:"token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
}

// Load reads the token. A missing file returns (nil, nil).
func (f *TokenFile) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("platform: read token file: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("platform: parse token file: %w", err)
	}
	access := st.AccessToken
	if access == "" {
		access = st.Token
	}
	if access == "" && st.RefreshToken == "" {
		return nil, nil
	}
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
		Expiry:       st.Expiry,
	}, nil
}

// Save writes tok with owner-only permissions, replacing the file atomically.
func (f *TokenFile) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(storedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("platform: marshal token: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("platform: create token dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return fmt.Errorf("platform: create token file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("platform: write token file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("platform: chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("platform: close token file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("platform: replace token file: %w", err)
	}
	return nil
}

// CredentialManager hands out a valid token, refreshing or acquiring one as
// needed. Token is safe for concurrent use; at most one caller loads,
// refreshes or persists at a time.
type CredentialManager struct {
	mu         sync.Mutex
	config     *oauth2.Config
	store      *TokenFile
	strategies []Strategy
	token      *oauth2.Token
	logger     *slog.Logger
}

// CredentialOption is a function that configures a CredentialManager.
type CredentialOption func(*CredentialManager)

// WithStrategies sets the acquisition strategies, tried in order.
func WithStrategies(s ...Strategy) CredentialOption {
	return func(m *CredentialManager) {
		m.strategies = s
	}
}

// WithCredentialLogger sets the logger.
func WithCredentialLogger(l *slog.Logger) CredentialOption {
	return func(m *CredentialManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewCredentialManager creates a manager. config may be nil when no client
// secrets are available; a stored, unexpired token is then still usable.
func NewCredentialManager(config *oauth2.Config, store *TokenFile, opts ...CredentialOption) *CredentialManager {
	m := &CredentialManager{
		config:     config,
		store:      store,
		strategies: []Strategy{RefreshStrategy{}},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Token returns a valid access token.
func (m *CredentialManager) Token(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == nil && m.store != nil {
		tok, err := m.store.Load()
		if err != nil {
			m.logger.Warn("ignoring unreadable token file", slog.String("error", err.Error()))
		}
		m.token = tok
	}
	if m.token != nil && m.token.Valid() {
		return m.token, nil
	}

	var errs []error
	for _, s := range m.strategies {
		tok, err := s.Acquire(ctx, m.config, m.token)
		if err != nil {
			m.logger.Debug("credential strategy failed",
				slog.String("strategy", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}

		m.token = tok
		m.logger.Info("credentials acquired", slog.String("strategy", s.Name()))
		if m.store != nil {
			if err := m.store.Save(tok); err != nil {
				m.logger.Warn("failed to persist token", slog.String("error", err.Error()))
			}
		}
		return tok, nil
	}

	return nil, errors.Join(append([]error{ErrNoCredentials}, errs...)...)
}
