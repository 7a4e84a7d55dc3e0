package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultTokenSkew refreshes tokens ten minutes before the provider expires them.
const DefaultTokenSkew = 600 * time.Second

type TokenFetcher func(ctx context.Context) (token string, expiresIn time.Duration, err error)

// TokenCache owns one provider access token. Concurrent callers that find it stale share a
// single refresh. A redis client, when present, lets several API instances share the token.
type TokenCache struct {
	name  string
	fetch TokenFetcher
	skew  time.Duration
	store *redis.Client
	now   func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	group     singleflight.Group
}

type TokenCacheOption func(*TokenCache)

func WithRedisStore(rd *redis.Client) TokenCacheOption {
	return func(c *TokenCache) {
		c.store = rd
	}
}

func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) {
		c.now = now
	}
}

func WithSkew(skew time.Duration) TokenCacheOption {
	return func(c *TokenCache) {
		c.skew = skew
	}
}

func NewTokenCache(name string, fetch TokenFetcher, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		name:  name,
		fetch: fetch,
		skew:  DefaultTokenSkew,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type storedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *TokenCache) key() string {
	return fmt.Sprintf("gateway:token:%s", c.name)
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, true
	}
	return "", false
}

func (c *TokenCache) set(token string, expiresAt time.Time) {
	c.mu.Lock()
	c.token = token
	c.expiresAt = expiresAt
	c.mu.Unlock()
}

func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}
	v, err, _ := c.group.Do(c.name, func() (any, error) {
		if token, ok := c.cached(); ok {
			return token, nil
		}
		if token, ok := c.load(ctx); ok {
			return token, nil
		}
		token, expiresIn, err := c.fetch(ctx)
		if err != nil {
			return "", err
		}
		if token == "" {
			return "", errors.New("provider returned an empty access token")
		}
		lifetime := expiresIn - c.skew
		if lifetime <= 0 {
			lifetime = expiresIn / 2
		}
		expiresAt := c.now().Add(lifetime)
		c.set(token, expiresAt)
		c.save(ctx, token, expiresAt)
		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the token, e.g. after the provider answers 401.
func (c *TokenCache) Invalidate(ctx context.Context) {
	c.set("", time.Time{})
	if c.store != nil {
		if err := c.store.Del(ctx, c.key()).Err(); err != nil {
			log.Printf("[TokenCache] Error deleting %s: %s\n", c.key(), err.Error())
		}
	}
}

func (c *TokenCache) load(ctx context.Context) (string, bool) {
	if c.store == nil {
		return "", false
	}
	raw, err := c.store.Get(ctx, c.key()).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[TokenCache] Error reading %s: %s\n", c.key(), err.Error())
		}
		return "", false
	}
	var st storedToken
	if err := json.Unmarshal([]byte(raw), &st); err != nil || st.Token == "" || !c.now().Before(st.ExpiresAt) {
		return "", false
	}
	c.set(st.Token, st.ExpiresAt)
	return st.Token, true
}

func (c *TokenCache) save(ctx context.Context, token string, expiresAt time.Time) {
	if c.store == nil {
		return
	}
	b, _ := json.Marshal(&storedToken{Token: token, ExpiresAt: expiresAt})
	if err := c.store.Set(ctx, c.key(), string(b), time.Until(expiresAt)).Err(); err != nil {
		log.Printf("[TokenCache] Error caching %s: %s\n", c.key(), err.Error())
	}
}

var (
	cachesMu sync.Mutex
	caches   = map[string]*TokenCache{}
)

// sharedTokenCache keeps one cache per credential set for the life of the process.
func sharedTokenCache(name string, fetch TokenFetcher, opts ...TokenCacheOption) *TokenCache {
	cachesMu.Lock()
	defer cachesMu.Unlock()
	if c, ok := caches[name]; ok {
		return c
	}
	c := NewTokenCache(name, fetch, opts...)
	caches[name] = c
	return c
}
