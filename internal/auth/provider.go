package auth

import (
	"context"

	"github.com/milifusa/mumpabackend-sub000/internal"
)

// Provider resolves a bearer token to a user. The local provider reads
// the user store directly, the remote one asks the auth service; main
// picks one per environment.
type Provider interface {
	ValidateToken(ctx context.Context, token string) (*internal.User, error)
}
