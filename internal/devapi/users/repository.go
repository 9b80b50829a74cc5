package users

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyExists = errors.New("username or email already exists")
)

type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	// GetUserByLogin matches login against username or email.
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
}
