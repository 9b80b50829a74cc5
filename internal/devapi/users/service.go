// Package users holds the accounts of the development backend and the
// rules for signing them in.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/devapi/auth"
	"github.com/dmitrijs2005/gophadmin/internal/devapi/config"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminRequired      = errors.New("admin privileges required")
	ErrInactive           = errors.New("account is disabled")
	ErrInvalidInput       = errors.New("username, email and password are required")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrTokenRevoked       = errors.New("token revoked")
)

const minPasswordLength = 8

// Session is a signed-in user and the access token issued for them.
type Session struct {
	User        *User
	AccessToken string
}

type Service struct {
	repo                        Repository
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	hashCost                    int
	now                         func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

type Option func(*Service)

// WithHashCost sets the bcrypt cost; tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

func WithNow(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		repo:                        repo,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		hashCost:                    bcrypt.DefaultCost,
		now:                         time.Now,
		revoked:                     make(map[string]time.Time),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, in NewUser) (*User, error) {
	return s.create(ctx, in, RoleUser)
}

// CreateAdmin provisions an admin account. Authorization is the caller's
// job.
func (s *Service) CreateAdmin(ctx context.Context, in NewUser) (*User, error) {
	return s.create(ctx, in, RoleAdmin)
}

// EnsureAdmin creates the admin account unless a user with the same
// username or email already exists.
func (s *Service) EnsureAdmin(ctx context.Context, in NewUser) (*User, error) {
	if u, err := s.repo.GetUserByLogin(ctx, in.Username); err == nil {
		return u, nil
	}
	return s.CreateAdmin(ctx, in)
}

func (s *Service) create(ctx context.Context, in NewUser, role string) (*User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, ErrInvalidInput
	}
	if len(in.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	now := s.now()
	user, err := s.repo.Create(ctx, &User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         role,
		IsActive:     true,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login checks the password of the user named by login (username or email).
// Asking for the admin role fails with ErrAdminRequired for anyone else.
func (s *Service) Login(ctx context.Context, login, password, role string) (*Session, error) {
	user, err := s.repo.GetUserByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactive
	}
	if role == RoleAdmin && user.Role != RoleAdmin {
		return nil, ErrAdminRequired
	}

	now := s.now()
	user.LastLogin = &now
	if user, err = s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *Service) issue(user *User) (*Session, error) {
	token, err := auth.GenerateToken(user.ID, user.Role, s.jwtSecret, s.accessTokenValidityDuration, s.now())
	if err != nil {
		return nil, fmt.Errorf("error signing token: %w", err)
	}
	return &Session{User: user, AccessToken: token}, nil
}

// IssueSession signs a fresh token for an existing user.
func (s *Service) IssueSession(ctx context.Context, user *User) (*Session, error) {
	return s.issue(user)
}

// Authenticate resolves a bearer token to its user. Revoked tokens and
// tokens of disabled or deleted users are rejected.
func (s *Service) Authenticate(ctx context.Context, token string) (*User, *auth.Claims, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, nil, ErrTokenRevoked
	}

	user, err := s.repo.GetByID(ctx, claims.UserID())
	if err != nil {
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrInactive
	}
	return user, claims, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, p Profile) (*User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if p.Username != nil {
		if strings.TrimSpace(*p.Username) == "" {
			return nil, ErrInvalidInput
		}
		user.Username = strings.TrimSpace(*p.Username)
	}
	if p.Email != nil {
		if strings.TrimSpace(*p.Email) == "" {
			return nil, ErrInvalidInput
		}
		user.Email = strings.TrimSpace(*p.Email)
	}
	if p.FirstName != nil {
		user.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		user.LastName = *p.LastName
	}
	user.UpdatedAt = s.now()

	return s.repo.Update(ctx, user)
}

// ChangePassword replaces the password and rotates the token: the one in
// claims is revoked and a new session returned.
func (s *Service) ChangePassword(ctx context.Context, claims *auth.Claims, current, next string) (*Session, error) {
	user, err := s.repo.GetByID(ctx, claims.UserID())
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(current)); err != nil {
		return nil, ErrWrongPassword
	}
	if len(next) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if user, err = s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.Revoke(claims)
	return s.issue(user)
}

// Revoke invalidates the token described by claims until it would have
// expired anyway.
func (s *Service) Revoke(claims *auth.Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	if claims.ExpiresAt != nil {
		s.revoked[claims.ID] = claims.ExpiresAt.Time
	}
}
