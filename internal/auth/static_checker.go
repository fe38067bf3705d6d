package auth

import "context"

// StaticChecker serves a fixed token to user map, used for local development.
type StaticChecker struct {
	Sessions map[string]string
}

func NewStaticChecker() *StaticChecker {
	return &StaticChecker{
		Sessions: map[string]string{},
	}
}

func (c *StaticChecker) UserID(_ context.Context, token string) (string, error) {
	userID, ok := c.Sessions[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return userID, nil
}
