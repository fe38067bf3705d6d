package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultTTL       = 24 * 30 * time.Hour
	sessionKeyPrefix = "fit45-session||"
	tokensSetKey     = "fit45-sessions"
)

var ErrInvalidSession = errors.New("invalid session")

// Service mirrors sessions issued by the external auth provider into redis.
type Service struct {
	redisClient *redis.Client
	ttl         time.Duration
	// ability to inject the clock (for unit and dev testing)
	Now func() time.Time
}

func NewService(ttl time.Duration, redisClient *redis.Client) *Service {
	return &Service{
		ttl:         ttl,
		redisClient: redisClient,
		Now:         time.Now,
	}
}

func sessionValue(userID string, createdAt time.Time) string {
	return fmt.Sprintf("%s|%d", userID, createdAt.Unix())
}

func parseSessionValue(val string) (string, time.Time, error) {
	idx := strings.LastIndex(val, "|")
	if idx <= 0 {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidSession, val)
	}
	createdAtUnix, err := strconv.ParseInt(val[idx+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return val[:idx], time.Unix(createdAtUnix, 0), nil
}

func (s *Service) Mirror(ctx context.Context, token, userID string, createdAt time.Time) error {
	if token == "" || userID == "" {
		return ErrInvalidSession
	}

	if err := s.redisClient.Set(ctx, sessionKeyPrefix+token, sessionValue(userID, createdAt), 0).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	// add token to list of sessions
	if err := s.redisClient.SAdd(ctx, tokensSetKey, token).Err(); err != nil {
		return fmt.Errorf("add session token: %w", err)
	}
	return nil
}

// Revoke removes the session. Returns false if the token was unknown.
func (s *Service) Revoke(ctx context.Context, token string) (bool, error) {
	deleted, err := s.redisClient.Del(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	if err := s.redisClient.SRem(ctx, tokensSetKey, token).Err(); err != nil {
		return false, fmt.Errorf("remove session token: %w", err)
	}
	return deleted > 0, nil
}

// ScanAndClean will run through all sessions, check the TTL, and clean them if old.
// Returns the number of removed sessions.
func (s *Service) ScanAndClean(ctx context.Context) int {
	sessionTokens, err := s.redisClient.SMembers(ctx, tokensSetKey).Result()
	if err != nil {
		log.Errorf("!!! auth service, scan and clean, get sessions: %s", err)
		return 0
	}
	if len(sessionTokens) == 0 {
		log.Debugln("=> auth service, scan and clean abort, no sessions")
		return 0
	}

	log.Debugf("=> auth service, scan and clean [%d sessions] start ...", len(sessionTokens))
	var toRemove []string
	for _, token := range sessionTokens {
		val, err := s.redisClient.Get(ctx, sessionKeyPrefix+token).Result()
		if errors.Is(err, redis.Nil) {
			toRemove = append(toRemove, token)
			continue
		}
		if err != nil {
			log.Errorf("=> auth service, scan and clean token: %s", err)
			continue
		}

		_, createdAt, err := parseSessionValue(val)
		if err != nil || s.Now().Sub(createdAt) > s.ttl {
			toRemove = append(toRemove, token)
		}
	}

	removed := 0
	for _, token := range toRemove {
		if _, err := s.Revoke(ctx, token); err != nil {
			log.Errorf("=> auth service, clean token: %s", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		log.Infof("=> auth service, scan and clean removed %d sessions", removed)
	}
	return removed
}
