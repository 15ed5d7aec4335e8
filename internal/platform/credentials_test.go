package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tokenServer fakes an OAuth token endpoint and counts requests.
func tokenServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "refresh_token":
			assert.Equal(t, "refresh-1", r.Form.Get("refresh_token"))
			_, _ = io.WriteString(w, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
		case "authorization_code":
			assert.Equal(t, "the-code", r.Form.Get("code"))
			_, _ = io.WriteString(w, `{"access_token":"exchanged","token_type":"Bearer","refresh_token":"refresh-new","expires_in":3600}`)
		default:
			http.Error(w, `{"error":"unsupported_grant_type"}`, http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testOAuthConfig(server *httptest.Server) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Scopes:       []string{UploadScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:   server.URL + "/auth",
			TokenURL:  server.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func TestTokenFile_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := NewTokenFile(path)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "a",
		TokenType:    "Bearer",
		RefreshToken: "r",
		Expiry:       expiry,
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
	assert.True(t, expiry.Equal(tok.Expiry))
}

func TestTokenFile_LoadMissing(t *testing.T) {
	tok, err := NewTokenFile(filepath.Join(t.TempDir(), "none.json")).Load()
	assert.NoError(t, err)
	assert.Nil(t, tok)
}

func TestTokenFile_LoadAlternateFieldName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"legacy","refresh_token":"r"}`), 0o600))

	tok, err := NewTokenFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "legacy", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
}

func TestTokenFile_LoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := NewTokenFile(path).Load()
	assert.Error(t, err)
}

func TestCredentialManager_ValidStoredToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	store := NewTokenFile(path)
	require.NoError(t, store.Save(&oauth2.Token{AccessToken: "stored", Expiry: time.Now().Add(time.Hour)}))

	// No client config: a valid stored token needs no network.
	m := NewCredentialManager(nil, store, WithCredentialLogger(quietLogger()))
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", tok.AccessToken)
}

func TestCredentialManager_RefreshIsPersisted(t *testing.T) {
	var calls atomic.Int32
	server := tokenServer(t, &calls)

	path := filepath.Join(t.TempDir(), "token.json")
	store := NewTokenFile(path)
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	m := NewCredentialManager(testOAuthConfig(server), store, WithCredentialLogger(quietLogger()))
	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken, "refresh token kept when not rotated")

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh", persisted.AccessToken)
	assert.Equal(t, "refresh-1", persisted.RefreshToken)

	// Cached: no further requests.
	_, err = m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCredentialManager_ConcurrentRefreshIsSerialized(t *testing.T) {
	var calls atomic.Int32
	server := tokenServer(t, &calls)

	store := NewTokenFile(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, store.Save(&oauth2.Token{
		AccessToken:  "expired",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}))
	m := NewCredentialManager(testOAuthConfig(server), store, WithCredentialLogger(quietLogger()))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "fresh", tok.AccessToken)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
}

func TestCredentialManager_NoCredentials(t *testing.T) {
	m := NewCredentialManager(nil, NewTokenFile(filepath.Join(t.TempDir(), "token.json")),
		WithCredentialLogger(quietLogger()))

	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoCredentials)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}

func TestCredentialManager_FallsBackToManual(t *testing.T) {
	var calls atomic.Int32
	server := tokenServer(t, &calls)

	path := filepath.Join(t.TempDir(), "token.json")
	var out bytes.Buffer
	m := NewCredentialManager(testOAuthConfig(server), NewTokenFile(path),
		WithCredentialLogger(quietLogger()),
		WithStrategies(RefreshStrategy{}, ManualStrategy{In: strings.NewReader("the-code\n"), Out: &out}),
	)

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "exchanged", tok.AccessToken)
	assert.Contains(t, out.String(), server.URL+"/auth")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, "refresh-new", stored["refresh_token"])
}

func TestLoadOAuthConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_secrets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"installed": {
			"client_id": "id.apps.example",
			"client_secret": "shh",
			"auth_uri": "https://accounts.google.com/o/oauth2/auth",
			"token_uri": "https://oauth2.googleapis.com/token",
			"redirect_uris": ["http://localhost"]
		}
	}`), 0o600))

	cfg, err := LoadOAuthConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "id.apps.example", cfg.ClientID)
	assert.Equal(t, []string{UploadScope}, cfg.Scopes)
	assert.NotEmpty(t, cfg.Endpoint.DeviceAuthURL)
}

func TestLoadOAuthConfig_Missing(t *testing.T) {
	_, err := LoadOAuthConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
