package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coocood/freecache"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const localCacheSize = 2 * 1024 * 1024

// SessionChecker looks tokens up in redis, with a small in-process cache above it.
type SessionChecker struct {
	ttl           time.Duration
	localCacheTTL time.Duration
	redisClient   *redis.Client
	cache         *freecache.Cache

	now func() time.Time
}

func NewSessionChecker(ttl, localCacheTTL time.Duration, redisClient *redis.Client) *SessionChecker {
	return &SessionChecker{
		ttl:           ttl,
		localCacheTTL: localCacheTTL,
		redisClient:   redisClient,
		cache:         freecache.NewCache(localCacheSize),
		now:           time.Now,
	}
}

func (c *SessionChecker) UserID(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}

	cacheKey := []byte(token)
	if c.localCacheTTL > 0 {
		if cached, err := c.cache.Get(cacheKey); err == nil {
			return string(cached), nil
		}
	}

	val, err := c.redisClient.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}

	userID, createdAt, err := parseSessionValue(val)
	if err != nil {
		log.Warnf("auth: malformed session value for token: %s", err)
		return "", ErrUnauthorized
	}

	age := c.now().Sub(createdAt)
	if age > c.ttl {
		return "", ErrUnauthorized
	}

	if c.localCacheTTL > 0 {
		// never cache past the session expiry
		cacheFor := c.localCacheTTL
		if left := c.ttl - age; left < cacheFor {
			cacheFor = left
		}
		if secs := int(cacheFor.Seconds()); secs > 0 {
			if err := c.cache.Set(cacheKey, []byte(userID), secs); err != nil {
				log.Debugf("auth: local cache set: %s", err)
			}
		}
	}

	return userID, nil
}

// Forget drops the token from the local cache, so a revoked session is not served from it.
func (c *SessionChecker) Forget(token string) {
	c.cache.Del([]byte(token))
}
