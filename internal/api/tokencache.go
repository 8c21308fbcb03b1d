package api

import (
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// TokenCache holds at most one access token. Renewal overwrites the slot.
//
// The mutex only keeps the slot's memory consistent; concurrent callers that
// both miss will both fetch a token and the last writer wins.
type TokenCache struct {
	mu        sync.Mutex
	token     *oauth2.Token
	expiresAt time.Time
	now       func() time.Time
}

// NewTokenCache creates an empty cache. A nil clock means time.Now.
func NewTokenCache(now func() time.Time) *TokenCache {
	if now == nil {
		now = time.Now
	}
	return &TokenCache{now: now}
}

// Get returns the cached token if one is held and has not expired.
func (c *TokenCache) Get() (*oauth2.Token, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == nil || !c.now().Before(c.expiresAt) {
		return nil, false
	}
	return c.token, true
}

// Set stores token for ttl, replacing whatever was cached.
func (c *TokenCache) Set(token *oauth2.Token, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.expiresAt = c.now().Add(ttl)
}

// Clear drops the cached token.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = nil
	c.expiresAt = time.Time{}
}

// Info describes the slot for display.
func (c *TokenCache) Info() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := map[string]interface{}{
		"has_cached_token": c.token != nil,
		"cache_expiry":     c.expiresAt,
	}
	if c.token != nil {
		info["expired"] = !c.now().Before(c.expiresAt)
		info["remaining"] = c.expiresAt.Sub(c.now()).Round(time.Second).String()
	}
	return info
}
