// Package session persists the operator session (bearer token and cached
// user) and the per-user profile extension in the local key/value store.
package session

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophadmin/internal/client/models"
	"github.com/dmitrijs2005/gophadmin/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophadmin/internal/dbx"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
	"github.com/google/uuid"
)

// Storage keys.
const (
	KeyToken         = "authToken"
	KeyUser          = "user"
	ProfileKeyPrefix = "userProfileData_"
	selfTestPrefix   = "__storage_test__"
)

// ProfileKey is the key holding the profile extension of userID.
func ProfileKey(userID string) string {
	return ProfileKeyPrefix + userID
}

// Store is what the auth gateway and the session manager need from
// persistence.
type Store interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	User(ctx context.Context) (*models.User, error)
	SetUser(ctx context.Context, user *models.User) error
	SaveSession(ctx context.Context, token string, user *models.User) error
	Clear(ctx context.Context, reason string) error

	ProfileData(ctx context.Context, userID string) (*models.ProfileData, error)
	SetProfileData(ctx context.Context, userID string, data *models.ProfileData) error
	ClearProfileData(ctx context.Context, userID string) error

	SelfTest(ctx context.Context) SelfTestResult
}

// SelfTestResult is the outcome of a storage round trip.
type SelfTestResult struct {
	Working bool   `json:"working"`
	Error   string `json:"error,omitempty"`
}

// KVStore implements Store on top of a metadata.Repository.
type KVStore struct {
	repo   metadata.Repository
	atomic func(ctx context.Context, fn func(repo metadata.Repository) error) error
	log    logging.Logger
}

// NewStore wraps repo. Multi-key writes are applied one after another.
func NewStore(repo metadata.Repository, log logging.Logger) *KVStore {
	s := &KVStore{repo: repo, log: log}
	s.atomic = func(_ context.Context, fn func(metadata.Repository) error) error {
		return fn(s.repo)
	}
	return s
}

// NewSQLiteStore keeps the session in the metadata table of db; writes that
// touch several keys run in one transaction.
func NewSQLiteStore(db *sql.DB, log logging.Logger) *KVStore {
	s := &KVStore{repo: metadata.NewSQLiteRepository(db), log: log}
	s.atomic = func(ctx context.Context, fn func(metadata.Repository) error) error {
		return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return fn(metadata.NewSQLiteRepository(tx))
		})
	}
	return s
}

func (s *KVStore) Token(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, KeyToken)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return string(v), nil
}

func (s *KVStore) SetToken(ctx context.Context, token string) error {
	if err := s.repo.Set(ctx, KeyToken, []byte(token)); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}

// User returns the cached user, or nil when there is none. A value that no
// longer parses is logged and reported as absent.
func (s *KVStore) User(ctx context.Context) (*models.User, error) {
	v, err := s.repo.Get(ctx, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	if len(v) == 0 {
		return nil, nil
	}

	var u models.User
	if err := json.Unmarshal(v, &u); err != nil {
		s.log.Warn(ctx, "cached user is not valid JSON, ignoring", "error", err)
		return nil, nil
	}
	return &u, nil
}

func (s *KVStore) SetUser(ctx context.Context, user *models.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	if err := s.repo.Set(ctx, KeyUser, b); err != nil {
		return fmt.Errorf("write user: %w", err)
	}
	return nil
}

// SaveSession writes token and user together.
func (s *KVStore) SaveSession(ctx context.Context, token string, user *models.User) error {
	b, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.atomic(ctx, func(repo metadata.Repository) error {
		if err := repo.Set(ctx, KeyToken, []byte(token)); err != nil {
			return err
		}
		return repo.Set(ctx, KeyUser, b)
	})
}

// Clear removes the token and the cached user. Clearing an empty store is
// not an error.
func (s *KVStore) Clear(ctx context.Context, reason string) error {
	err := s.atomic(ctx, func(repo metadata.Repository) error {
		if err := repo.Delete(ctx, KeyToken); err != nil {
			return err
		}
		return repo.Delete(ctx, KeyUser)
	})
	if err != nil {
		s.log.Error(ctx, "failed to clear session", "reason", reason, "error", err)
		return fmt.Errorf("clear session: %w", err)
	}
	s.log.Info(ctx, "session cleared", "reason", reason)
	return nil
}

func (s *KVStore) ProfileData(ctx context.Context, userID string) (*models.ProfileData, error) {
	v, err := s.repo.Get(ctx, ProfileKey(userID))
	if err != nil {
		return nil, fmt.Errorf("read profile data: %w", err)
	}
	if len(v) == 0 {
		return nil, nil
	}
	var d models.ProfileData
	if err := json.Unmarshal(v, &d); err != nil {
		s.log.Warn(ctx, "cached profile data is not valid JSON, ignoring", "user_id", userID, "error", err)
		return nil, nil
	}
	return &d, nil
}

func (s *KVStore) SetProfileData(ctx context.Context, userID string, data *models.ProfileData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode profile data: %w", err)
	}
	if err := s.repo.Set(ctx, ProfileKey(userID), b); err != nil {
		return fmt.Errorf("write profile data: %w", err)
	}
	return nil
}

func (s *KVStore) ClearProfileData(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, ProfileKey(userID)); err != nil {
		return fmt.Errorf("clear profile data: %w", err)
	}
	return nil
}

// SelfTest writes, reads back and deletes a throwaway key.
func (s *KVStore) SelfTest(ctx context.Context) SelfTestResult {
	key := selfTestPrefix + uuid.NewString()
	want := []byte("test")

	if err := s.repo.Set(ctx, key, want); err != nil {
		return SelfTestResult{Error: err.Error()}
	}
	defer func() {
		if err := s.repo.Delete(ctx, key); err != nil {
			s.log.Warn(ctx, "self-test key left behind", "key", key, "error", err)
		}
	}()

	got, err := s.repo.Get(ctx, key)
	if err != nil {
		return SelfTestResult{Error: err.Error()}
	}
	if !bytes.Equal(got, want) {
		return SelfTestResult{Error: "read back value does not match"}
	}
	return SelfTestResult{Working: true}
}
