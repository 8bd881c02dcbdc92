// Package auth maintains the bot's app access token: a small owned cache
// updated by one refresher goroutine and read by the delivery layer.
// Reads are stale-tolerant; a send racing a refresh simply fails with 401
// and is recorded as failed.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const defaultEndpoint = "https://bots.qq.com/app/getAppAccessToken"

// Cache holds the current token and its expiry.
type Cache struct {
	mu     sync.RWMutex
	token  string
	expiry time.Time
}

// Token returns the current bearer token, possibly empty before the
// first successful refresh. It never blocks on a refresh.
func (c *Cache) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Valid reports whether a token is present and unexpired.
func (c *Cache) Valid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != "" && time.Now().Before(c.expiry)
}

func (c *Cache) set(token string, ttl time.Duration) {
	c.mu.Lock()
	c.token = token
	c.expiry = time.Now().Add(ttl)
	c.mu.Unlock()
}

// Refresher fetches tokens from the platform on a schedule derived from
// each token's expires_in.
type Refresher struct {
	appID    string
	secret   string
	endpoint string
	client   *http.Client
	cache    *Cache

	// RetryInterval is the wait after a failed fetch.
	RetryInterval time.Duration
	// EarlyRefresh is subtracted from expires_in so the token is renewed
	// before the platform invalidates it.
	EarlyRefresh time.Duration
}

// NewRefresher builds a refresher for the bot credentials.
func NewRefresher(appID, secret string) *Refresher {
	return &Refresher{
		appID:         appID,
		secret:        secret,
		endpoint:      defaultEndpoint,
		client:        &http.Client{Timeout: 15 * time.Second},
		cache:         &Cache{},
		RetryInterval: time.Minute,
		EarlyRefresh:  30 * time.Second,
	}
}

// NewRefresherWithEndpoint overrides the token endpoint. Test hook.
func NewRefresherWithEndpoint(appID, secret, endpoint string) *Refresher {
	r := NewRefresher(appID, secret)
	r.endpoint = endpoint
	return r
}

// Cache exposes the owned token cache for readers.
func (r *Refresher) Cache() *Cache { return r.cache }

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
	Message     string      `json:"message"`
	Code        int         `json:"code"`
}

// FetchOnce performs a single token fetch and updates the cache.
// It returns the delay until the next refresh should run.
func (r *Refresher) FetchOnce(ctx context.Context) (time.Duration, error) {
	body, err := json.Marshal(map[string]string{
		"appId":        r.appID,
		"clientSecret": r.secret,
	})
	if err != nil {
		return r.RetryInterval, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return r.RetryInterval, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return r.RetryInterval, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return r.RetryInterval, fmt.Errorf("read token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return r.RetryInterval, fmt.Errorf("decode token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		return r.RetryInterval, fmt.Errorf("token endpoint status %d: code=%d message=%s", resp.StatusCode, tr.Code, tr.Message)
	}

	expires, err := tr.ExpiresIn.Int64()
	if err != nil || expires <= 0 {
		expires = 7200
	}
	ttl := time.Duration(expires) * time.Second
	r.cache.set(tr.AccessToken, ttl)

	next := ttl - r.EarlyRefresh
	if next < time.Second {
		next = time.Second
	}
	return next, nil
}

// Run refreshes the token until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context, onError func(error)) {
	for {
		next, err := r.FetchOnce(ctx)
		if err != nil && onError != nil {
			onError(err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(next):
		}
	}
}
