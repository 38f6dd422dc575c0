package api

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"oj/internal/model"
	"oj/internal/store"
)

// ErrInvalidCredentials is returned by AuthService.Authenticate on a
// wrong username or password, without distinguishing which.
var ErrInvalidCredentials = errors.New("api: invalid credentials")

// AuthService authenticates principals against the User Store, following
// the teacher's AuthService interface shape.
type AuthService interface {
	Authenticate(ctx context.Context, username, password string) (model.User, error)
}

type bcryptAuthService struct {
	users *store.UserStore
}

func NewAuthService(users *store.UserStore) AuthService {
	return &bcryptAuthService{users: users}
}

func (a *bcryptAuthService) Authenticate(ctx context.Context, username, password string) (model.User, error) {
	u, err := a.users.FindByName(ctx, username)
	if err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return model.User{}, ErrInvalidCredentials
	}
	return u, nil
}
