package ebay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Default eBay OAuth client-credentials endpoint and scope.
const (
	defaultTokenURL = "https://api.ebay.com/identity/v1/oauth2/token"
	defaultScope    = "https://api.ebay.com/oauth/api_scope"

	// Refresh this long before the reported expiry so a token never dies
	// mid-scan.
	expiryMargin = 5 * time.Minute
)

// TokenProvider caches one application bearer token and regenerates it only
// when expired. It is safe for concurrent use; a redundant refresh under a
// race is harmless because token minting is idempotent.
type TokenProvider struct {
	clientID     string
	clientSecret string
	tokenURL     string
	httpClient   *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenProvider builds a provider for the given application credentials.
// tokenURL may be empty to use the production endpoint.
func NewTokenProvider(clientID, clientSecret, tokenURL string) *TokenProvider {
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	return &TokenProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether credentials are present.
func (p *TokenProvider) Configured() bool {
	return p.clientID != "" && p.clientSecret != ""
}

// Token returns a valid bearer token, minting a fresh one when the cached
// token is missing or within the expiry margin.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expiresAt) {
		return p.token, nil
	}

	if !p.Configured() {
		return "", fmt.Errorf("marketplace credentials not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", defaultScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(p.clientID + ":" + p.clientSecret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed: %d %s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("parsing token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	p.token = payload.AccessToken
	p.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - expiryMargin)
	return p.token, nil
}
