package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"ga4revenue/internal/apperr"
	"ga4revenue/internal/metrics"
)

const (
	// JWTBearerGrantType is the OAuth2 grant for exchanging a signed assertion
	JWTBearerGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

	// TokenCacheTTL is kept below the assertion's 3600s validity to leave margin
	TokenCacheTTL = 3500 * time.Second

	// DefaultAuthTimeout bounds the token exchange request
	DefaultAuthTimeout = 15 * time.Second
)

// Credentials are the decrypted service-account values used to sign assertions.
type Credentials struct {
	ClientEmail string
	PrivateKey  string
}

// AuthClient exchanges service-account assertions for access tokens and keeps
// the last one in a TokenCache.
type AuthClient struct {
	creds      Credentials
	tokenURL   string
	scope      string
	httpClient *http.Client
	cache      *TokenCache
	now        func() time.Time
	metrics    *metrics.Metrics
}

// AuthOption customises an AuthClient.
type AuthOption func(*AuthClient)

// WithTokenURL overrides the OAuth token endpoint (also used as audience).
func WithTokenURL(tokenURL string) AuthOption {
	return func(a *AuthClient) {
		if tokenURL != "" {
			a.tokenURL = tokenURL
		}
	}
}

// WithAuthHTTPClient sets the HTTP client used for the exchange.
func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(a *AuthClient) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithAuthTimeout sets the exchange timeout on the default HTTP client.
func WithAuthTimeout(timeout time.Duration) AuthOption {
	return func(a *AuthClient) {
		if timeout > 0 {
			a.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithTokenCache shares a cache between clients.
func WithTokenCache(cache *TokenCache) AuthOption {
	return func(a *AuthClient) {
		if cache != nil {
			a.cache = cache
		}
	}
}

// WithClock injects the time source used for assertions.
func WithClock(now func() time.Time) AuthOption {
	return func(a *AuthClient) {
		if now != nil {
			a.now = now
		}
	}
}

// WithAuthMetrics records token exchanges and cache lookups.
func WithAuthMetrics(m *metrics.Metrics) AuthOption {
	return func(a *AuthClient) {
		a.metrics = m
	}
}

// NewAuthClient creates a token client for the given service account.
func NewAuthClient(creds Credentials, opts ...AuthOption) *AuthClient {
	a := &AuthClient{
		creds:      creds,
		tokenURL:   google.Endpoint.TokenURL,
		scope:      AnalyticsReadOnlyScope,
		httpClient: &http.Client{Timeout: DefaultAuthTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.cache == nil {
		a.cache = NewTokenCache(a.now)
	}
	return a
}

// tokenResponse is the OAuth token endpoint's JSON body, success or failure
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// GetAccessToken returns the cached token or exchanges a fresh assertion.
func (a *AuthClient) GetAccessToken(ctx context.Context) (*oauth2.Token, error) {
	if token, ok := a.cache.Get(); ok {
		a.metrics.RecordTokenLookup(true)
		return token, nil
	}
	a.metrics.RecordTokenLookup(false)

	if strings.TrimSpace(a.creds.ClientEmail) == "" || strings.TrimSpace(a.creds.PrivateKey) == "" {
		return nil, apperr.New(apperr.MissingCredentials, "API credentials not configured")
	}

	assertion, err := BuildAssertion(a.creds.ClientEmail, a.creds.PrivateKey, a.scope, a.tokenURL, a.now())
	if err != nil {
		return nil, err
	}

	return a.exchange(ctx, assertion)
}

// exchange POSTs the assertion to the token endpoint and caches the result
func (a *AuthClient) exchange(ctx context.Context, assertion string) (*oauth2.Token, error) {
	start := time.Now()

	form := url.Values{}
	form.Set("grant_type", JWTBearerGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		a.metrics.ObserveUpstream(metrics.TargetToken, string(apperr.NetworkError), time.Since(start))
		return nil, apperr.Wrap(apperr.NetworkError, "token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		a.metrics.ObserveUpstream(metrics.TargetToken, string(apperr.NetworkError), time.Since(start))
		return nil, apperr.Wrap(apperr.NetworkError, "failed to read token response", err)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		log.Debug().
			Int("status", resp.StatusCode).
			Err(err).
			Msg("Token endpoint returned a non-JSON body")
	}

	if tokenResp.AccessToken == "" {
		a.metrics.ObserveUpstream(metrics.TargetToken, string(apperr.TokenError), time.Since(start))
		message := tokenResp.ErrorDescription
		if message == "" {
			message = tokenResp.Error
		}
		if message == "" {
			message = "Failed to get access token"
		}
		return nil, apperr.New(apperr.TokenError, message)
	}

	token := &oauth2.Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		Expiry:      a.now().Add(TokenCacheTTL),
	}
	a.cache.Set(token, TokenCacheTTL)

	a.metrics.ObserveUpstream(metrics.TargetToken, "success", time.Since(start))
	log.Debug().
		Str("client_email", a.creds.ClientEmail).
		Int("expires_in", tokenResp.ExpiresIn).
		Time("cache_expiry", token.Expiry).
		Msg("Obtained Google access token")

	return token, nil
}

// ClearTokenCache drops the cached token so the next call re-authenticates.
func (a *AuthClient) ClearTokenCache() {
	a.cache.Clear()
}

// TokenInfo describes the cached token for display.
func (a *AuthClient) TokenInfo() map[string]interface{} {
	return a.cache.Info()
}

// MaskToken shortens a token for display.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + "..." + token[len(token)-4:]
}
