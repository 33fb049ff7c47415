package cloudsync

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/veilcask/veilcask/internal/constants"
	"github.com/veilcask/veilcask/internal/vaulterr"
)

// OAuthEndpoints names the provider's authorization and token endpoints.
type OAuthEndpoints struct {
	AuthURL  string
	TokenURL string
	ClientID string
	Scopes   []string
}

// Token is the credential material kept encrypted at rest
// (internal/cloudconfig wraps this with the envelope codec).
type Token struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"` // unix seconds
}

// pkceVerifier generates the PKCE verifier/challenge pair (§4.8 step 1).
func pkceVerifier() (verifier, challenge string, err error) {
	raw := make([]byte, 64)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("read random verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(raw)
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

func randomState() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("read random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// loopbackHosts are the only hosts the loopback redirect URI may bind to
// (§4.8 provider safety constraints).
var loopbackHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

func isStrictLoopback(host string) bool {
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		h = host
	}
	if loopbackHosts[h] {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

// ValidateProviderURL enforces §4.8's mandatory URL safety constraints:
// only https is accepted, except for the strict loopback set which may use
// http, and no URL may embed credentials.
func ValidateProviderURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse provider url: %w", err)
	}
	if u.User != nil {
		return fmt.Errorf("provider url must not embed credentials")
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isStrictLoopback(u.Host) {
			return nil
		}
		return fmt.Errorf("http scheme only permitted for loopback hosts, got %q", u.Host)
	default:
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
}

// AcquireToken runs the PKCE loopback flow described in §4.8: it starts a
// local HTTP server, opens the authorization URL (the caller is responsible
// for presenting authURL to the user, e.g. opening a browser), and blocks
// until the loopback receives a matching code or the timeout elapses.
func AcquireToken(ctx context.Context, ep OAuthEndpoints, openAuthURL func(authURL string) error) (*Token, error) {
	verifier, challenge, err := pkceVerifier()
	if err != nil {
		return nil, err
	}
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bind loopback listener: %w", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	redirectURI := fmt.Sprintf("http://127.0.0.1:%d/", port)

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			errCh <- fmt.Errorf("oauth state mismatch")
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			errCh <- fmt.Errorf("oauth callback missing code")
			return
		}
		fmt.Fprintln(w, "Authentication complete. You may close this window.")
		codeCh <- code
	})
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(listener) }()
	defer srv.Close()

	authURL, err := buildAuthURL(ep, redirectURI, challenge, state)
	if err != nil {
		return nil, err
	}
	if openAuthURL != nil {
		if err := openAuthURL(authURL); err != nil {
			return nil, fmt.Errorf("open authorization url: %w", err)
		}
	}

	timeout := time.Duration(constants.OAuthLoopbackTimeoutSeconds) * time.Second
	select {
	case code := <-codeCh:
		return exchangeCode(ctx, ep, redirectURI, code, verifier)
	case err := <-errCh:
		return nil, err
	case <-time.After(timeout):
		return nil, vaulterr.Wrap(vaulterr.ProviderError, fmt.Errorf("oauth loopback timed out after %s", timeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func buildAuthURL(ep OAuthEndpoints, redirectURI, challenge, state string) (string, error) {
	if err := ValidateProviderURL(ep.AuthURL); err != nil {
		return "", err
	}
	u, err := url.Parse(ep.AuthURL)
	if err != nil {
		return "", fmt.Errorf("parse auth url: %w", err)
	}
	q := u.Query()
	q.Set("client_id", ep.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("code_challenge", challenge)
	q.Set("code_challenge_method", "S256")
	q.Set("state", state)
	if len(ep.Scopes) > 0 {
		scopes := ""
		for i, s := range ep.Scopes {
			if i > 0 {
				scopes += " "
			}
			scopes += s
		}
		q.Set("scope", scopes)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func exchangeCode(ctx context.Context, ep OAuthEndpoints, redirectURI, code, verifier string) (*Token, error) {
	if err := ValidateProviderURL(ep.TokenURL); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("client_id", ep.ClientID)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", verifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TokenURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.URL.RawQuery = form.Encode()

	return doTokenRequest(req)
}

// RefreshToken exchanges a refresh token for a new access token (§4.8 token
// refresh); called when the access token is within 5 minutes of expiry.
func RefreshToken(ctx context.Context, ep OAuthEndpoints, refreshToken string) (*Token, error) {
	if err := ValidateProviderURL(ep.TokenURL); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("client_id", ep.ClientID)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TokenURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.URL.RawQuery = form.Encode()

	tok, err := doTokenRequest(req)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ReauthRequired, err)
	}
	return tok, nil
}

// doTokenRequest is intentionally left as a thin seam: a real provider
// adapter supplies its own HTTP client and response parsing, since token
// response shapes vary by vendor. The core only depends on Token's fields.
var doTokenRequest = func(req *http.Request) (*Token, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, vaulterr.Wrap(vaulterr.ProviderError, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, vaulterr.WithProvider(vaulterr.ProviderAuthExpired, fmt.Errorf("token endpoint returned %d", resp.StatusCode))
	}
	return nil, fmt.Errorf("doTokenRequest: provider-specific response parsing not implemented in the generic adapter")
}

// NeedsRefresh reports whether tok should be refreshed now, per §4.8's
// "within 5 minutes of expiry" policy.
func NeedsRefresh(tok Token, now int64) bool {
	const skewSeconds = 5 * 60
	return now >= tok.ExpiresAt-skewSeconds
}
