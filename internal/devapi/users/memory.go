package users

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository keeps users in process memory. Returned users are
// copies.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{users: make(map[string]*User)}
}

func (r *MemoryRepository) Create(ctx context.Context, user *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflictLocked(user, "") {
		return nil, ErrAlreadyExists
	}

	u := user.clone()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.users[u.ID] = u
	return u.clone(), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.clone(), nil
}

func (r *MemoryRepository) GetUserByLogin(ctx context.Context, login string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Username, login) || strings.EqualFold(u.Email, login) {
			return u.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) Update(ctx context.Context, user *User) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.ID]; !ok {
		return nil, ErrNotFound
	}
	if r.conflictLocked(user, user.ID) {
		return nil, ErrAlreadyExists
	}
	u := user.clone()
	r.users[u.ID] = u
	return u.clone(), nil
}

// conflictLocked reports whether another user than skipID already has
// user's username or email.
func (r *MemoryRepository) conflictLocked(user *User, skipID string) bool {
	for id, u := range r.users {
		if id == skipID {
			continue
		}
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return true
		}
	}
	return false
}
