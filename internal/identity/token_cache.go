package identity

import (
	"sync"
	"time"
)

// expiryBuffer is subtracted from a token's lifetime so it is refreshed
// before the issuer would reject it.
const expiryBuffer = 5 * time.Second

// TokenCache holds at most one token in memory. It is never persisted.
type TokenCache struct {
	mu    sync.RWMutex
	token Token
	now   func() time.Time
}

// NewTokenCache creates a new empty token cache
func NewTokenCache(now func() time.Time) *TokenCache {
	if now == nil {
		now = time.Now
	}
	return &TokenCache{now: now}
}

// Get returns the cached token while it is still valid.
func (c *TokenCache) Get() (Token, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.token.Valid(c.now().Add(expiryBuffer)) {
		return Token{}, false
	}
	return c.token, true
}

// Set stores a token. Tokens that are already expired are refused.
func (c *TokenCache) Set(token Token) error {
	if !token.Valid(c.now()) {
		return ErrTokenExpired
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	return nil
}

// Clear removes the cached token
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = Token{}
}

// TTL returns the remaining lifetime of the cached token, or 0.
func (c *TokenCache) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.token.Value == "" {
		return 0
	}
	remaining := c.token.ExpiresOn.Sub(c.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
