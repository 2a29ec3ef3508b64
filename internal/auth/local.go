package auth

import (
	"context"
	"errors"

	"github.com/milifusa/mumpabackend-sub000/internal"
	"github.com/milifusa/mumpabackend-sub000/internal/storage"
)

// LocalAuthProvider validates tokens against the user repository. Used in
// development, where users.json seeds the known tokens.
type LocalAuthProvider struct {
	users  storage.UserRepository
	logger internal.Logger
}

func NewLocalAuthProvider(users storage.UserRepository, logger internal.Logger) *LocalAuthProvider {
	return &LocalAuthProvider{users: users, logger: logger}
}

func (a *LocalAuthProvider) ValidateToken(ctx context.Context, token string) (*internal.User, error) {
	user, err := a.users.GetUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			a.logger.Warnf("invalid token")
			return nil, errors.New("invalid token")
		}
		return nil, err
	}
	return user, nil
}

var _ Provider = (*LocalAuthProvider)(nil)
