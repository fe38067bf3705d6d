package auth

import (
	"context"
	"errors"
)

var _ Checker = (*SessionChecker)(nil)
var _ Checker = (*StaticChecker)(nil)

var ErrUnauthorized = errors.New("unauthorized")

// Checker resolves the user behind a session token issued by the auth provider.
type Checker interface {
	UserID(ctx context.Context, token string) (string, error)
}
