package platform

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/oauth2"
)

// Auth modes accepted by SelectStrategies.
const (
	AuthModeAuto    = "auto"
	AuthModeBrowser = "browser"
	AuthModeDevice  = "device"
	AuthModeManual  = "manual"
)

// manualRedirectURL is where the manual flow sends the user after consent.
// Nothing listens there; the user copies the code from the address bar.
const manualRedirectURL = "http://localhost"

// browserTimeout bounds how long the loopback flow waits for consent.
const browserTimeout = 5 * time.Minute

// Static errors for acquisition strategies.
var (
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrInvalidAuthMode = errors.New("platform: invalid auth mode")
	ErrStateMismatch   = errors.New("oauth state mismatch")
	ErrNoAuthCode      = errors.New("no authorization code")
)

// Strategy obtains a token. current is the last known token and may be nil.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context, cfg *oauth2.Config, current *oauth2.Token) (*oauth2.Token, error)
}

// RefreshStrategy exchanges the current refresh token for a new access token.
type RefreshStrategy struct{}

// Name returns "refresh".
func (RefreshStrategy) Name() string { return "refresh" }

// Acquire refreshes current.
func (RefreshStrategy) Acquire(ctx context.Context, cfg *oauth2.Config, current *oauth2.Token) (*oauth2.Token, error) {
	if current == nil || current.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	if cfg == nil {
		return nil, ErrNoClientConfig
	}
	// An expired copy forces the token source to hit the token endpoint.
	stale := &oauth2.Token{RefreshToken: current.RefreshToken}
	tok, err := cfg.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return tok, nil
}

// BrowserStrategy runs the authorization code flow with PKCE against a
// loopback redirect server.
type BrowserStrategy struct {
	Out io.Writer
	// Open launches a browser at the URL. Nil only prints it.
	Open func(url string) error
}

// Name returns "browser".
func (BrowserStrategy) Name() string { return "browser" }

// Acquire waits for the redirect carrying the authorization code.
func (s BrowserStrategy) Acquire(ctx context.Context, cfg *oauth2.Config, _ *oauth2.Token) (*oauth2.Token, error) {
	if cfg == nil {
		return nil, ErrNoClientConfig
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for redirect: %w", err)
	}

	local := *cfg
	local.RedirectURL = "http://" + ln.Addr().String() + "/"

	state, err := randomState()
	if err != nil {
		_ = ln.Close()
		return nil, err
	}
	verifier := oauth2.GenerateVerifier()
	authURL := local.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))

	type callback struct {
		code string
		err  error
	}
	results := make(chan callback, 1)

	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			var cb callback
			switch {
			case q.Get("state") != state:
				cb.err = ErrStateMismatch
			case q.Get("error") != "":
				cb.err = fmt.Errorf("authorization denied: %s", q.Get("error"))
			case q.Get("code") == "":
				cb.err = ErrNoAuthCode
			default:
				cb.code = q.Get("code")
			}
			if cb.err != nil {
				http.Error(w, cb.err.Error(), http.StatusBadRequest)
			} else {
				_, _ = io.WriteString(w, "Authorization complete. You can close this window.\n")
			}
			select {
			case results <- cb:
			default:
			}
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Close() }()

	s.prompt("Open this URL in your browser to authorize uploads:\n%s\n", authURL)
	if s.Open != nil {
		_ = s.Open(authURL)
	}

	ctx, cancel := context.WithTimeout(ctx, browserTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for authorization: %w", ctx.Err())
	case cb := <-results:
		if cb.err != nil {
			return nil, cb.err
		}
		tok, err := local.Exchange(ctx, cb.code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("exchange code: %w", err)
		}
		return tok, nil
	}
}

func (s BrowserStrategy) prompt(format string, args ...any) {
	if s.Out != nil {
		_, _ = fmt.Fprintf(s.Out, format, args...)
	}
}

// DeviceStrategy runs the device authorization grant: the user enters a
// short code on another device while this process polls.
type DeviceStrategy struct {
	Out io.Writer
}

// Name returns "device".
func (DeviceStrategy) Name() string { return "device" }

// Acquire prints the user code and polls until it is approved.
func (s DeviceStrategy) Acquire(ctx context.Context, cfg *oauth2.Config, _ *oauth2.Token) (*oauth2.Token, error) {
	if cfg == nil {
		return nil, ErrNoClientConfig
	}
	da, err := cfg.DeviceAuth(ctx, oauth2.AccessTypeOffline)
	if err != nil {
		return nil, fmt.Errorf("device authorization: %w", err)
	}
	if s.Out != nil {
		_, _ = fmt.Fprintf(s.Out, "Visit %s and enter code %s\n", da.VerificationURI, da.UserCode)
	}
	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("device token: %w", err)
	}
	return tok, nil
}

// ManualStrategy prints the consent URL and reads the authorization code,
// or the full redirected URL, from In.
type ManualStrategy struct {
	In  io.Reader
	Out io.Writer
}

// Name returns "manual".
func (ManualStrategy) Name() string { return "manual" }

// Acquire exchanges the pasted code.
func (s ManualStrategy) Acquire(ctx context.Context, cfg *oauth2.Config, _ *oauth2.Token) (*oauth2.Token, error) {
	if cfg == nil {
		return nil, ErrNoClientConfig
	}
	if s.In == nil {
		return nil, errors.New("no input to read the code from")
	}

	local := *cfg
	if local.RedirectURL == "" {
		local.RedirectURL = manualRedirectURL
	}
	state, err := randomState()
	if err != nil {
		return nil, err
	}
	if s.Out != nil {
		_, _ = fmt.Fprintf(s.Out, "Open this URL, authorize, then paste the code or the redirected URL:\n%s\n> ",
			local.AuthCodeURL(state, oauth2.AccessTypeOffline))
	}

	line, err := bufio.NewReader(s.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read code: %w", err)
	}
	code, err := parseAuthCode(strings.TrimSpace(line), state)
	if err != nil {
		return nil, err
	}

	tok, err := local.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}

// parseAuthCode accepts a bare code or a redirect URL carrying code and state.
func parseAuthCode(input, state string) (string, error) {
	if input == "" {
		return "", ErrNoAuthCode
	}
	if !strings.Contains(input, "://") {
		return input, nil
	}
	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse redirect URL: %w", err)
	}
	q := u.Query()
	if got := q.Get("state"); got != "" && got != state {
		return "", ErrStateMismatch
	}
	if q.Get("code") == "" {
		return "", ErrNoAuthCode
	}
	return q.Get("code"), nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Capabilities describes what the process can use to reach a human.
type Capabilities struct {
	Display  bool
	Terminal bool
}

// DetectCapabilities inspects the environment and stdin.
func DetectCapabilities() Capabilities {
	display := runtime.GOOS == "darwin" || runtime.GOOS == "windows" ||
		os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
	fd := os.Stdin.Fd()
	return Capabilities{
		Display:  display,
		Terminal: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// SelectStrategies returns the strategies for mode. Refresh always comes
// first; in auto mode the interactive fallback follows caps.
func SelectStrategies(mode string, caps Capabilities, in io.Reader, out io.Writer) ([]Strategy, error) {
	strategies := []Strategy{RefreshStrategy{}}

	switch strings.ToLower(mode) {
	case AuthModeBrowser:
		strategies = append(strategies, BrowserStrategy{Out: out})
	case AuthModeDevice:
		strategies = append(strategies, DeviceStrategy{Out: out})
	case AuthModeManual:
		strategies = append(strategies, ManualStrategy{In: in, Out: out})
	case AuthModeAuto, "":
		switch {
		case caps.Display && caps.Terminal:
			strategies = append(strategies, BrowserStrategy{Out: out})
		case caps.Terminal:
			strategies = append(strategies, ManualStrategy{In: in, Out: out})
		default:
			strategies = append(strategies, DeviceStrategy{Out: out})
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAuthMode, mode)
	}
	return strategies, nil
}
