package auth

import (
	"context"
	"errors"
)

// ErrNoIdentity is returned when no caller identity can be resolved.
var ErrNoIdentity = errors.New("caller identity unavailable")

// Resolver determines which user a request acts on behalf of.
type Resolver interface {
	ResolveCallerIdentity(ctx context.Context) (string, error)
}

// Static resolves every caller to one fixed user id.
// It stands in for real authentication during local development.
type Static struct {
	userID string
}

// NewStatic returns a Static resolver for userID.
func NewStatic(userID string) *Static {
	return &Static{userID: userID}
}

func (s *Static) ResolveCallerIdentity(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.userID == "" {
		return "", ErrNoIdentity
	}
	return s.userID, nil
}
