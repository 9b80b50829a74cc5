package session

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophadmin/internal/client/client"
	"github.com/dmitrijs2005/gophadmin/internal/client/models"
	"github.com/dmitrijs2005/gophadmin/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bufLogger() (*logging.SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil))), &buf
}

func sampleUser() *models.User {
	return &models.User{ID: "u1", Username: "ops", Email: "ops@example.com", Role: models.RoleAdmin, IsActive: true}
}

func stores(t *testing.T) map[string]*KVStore {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]*KVStore{
		"memory": NewStore(metadata.NewMemoryRepository(), logging.NewNop()),
		"sqlite": NewSQLiteStore(db, logging.NewNop()),
	}
}

func TestStore_SaveSessionAndRead(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveSession(ctx, "aaaa.bbbb.cccc", sampleUser()))

			tok, err := s.Token(ctx)
			require.NoError(t, err)
			assert.Equal(t, "aaaa.bbbb.cccc", tok)

			u, err := s.User(ctx)
			require.NoError(t, err)
			if diff := cmp.Diff(sampleUser(), u); diff != "" {
				t.Fatalf("user mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStore_EmptyReadsAsAbsent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			tok, err := s.Token(ctx)
			require.NoError(t, err)
			assert.Empty(t, tok)

			u, err := s.User(ctx)
			require.NoError(t, err)
			assert.Nil(t, u)
		})
	}
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.SaveSession(ctx, "aaaa.bbbb.cccc", sampleUser()))

			require.NoError(t, s.Clear(ctx, "user logout"))
			require.NoError(t, s.Clear(ctx, "user logout"))

			tok, _ := s.Token(ctx)
			u, _ := s.User(ctx)
			assert.Empty(t, tok)
			assert.Nil(t, u)
		})
	}
}

func TestStore_ClearKeepsProfileData(t *testing.T) {
	s := NewStore(metadata.NewMemoryRepository(), logging.NewNop())
	ctx := context.Background()

	require.NoError(t, s.SaveSession(ctx, "aaaa.bbbb.cccc", sampleUser()))
	require.NoError(t, s.SetProfileData(ctx, "u1", &models.ProfileData{Phone: "123"}))
	require.NoError(t, s.Clear(ctx, "token expired"))

	d, err := s.ProfileData(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "123", d.Phone)
}

func TestStore_ClearLogsReason(t *testing.T) {
	log, buf := bufLogger()
	s := NewStore(metadata.NewMemoryRepository(), log)

	require.NoError(t, s.Clear(context.Background(), "idle timeout"))
	assert.Contains(t, buf.String(), `reason="idle timeout"`)
}

func TestStore_UserParseFailureIsAbsentAndLogged(t *testing.T) {
	log, buf := bufLogger()
	repo := metadata.NewMemoryRepository()
	s := NewStore(repo, log)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, KeyUser, []byte("{not json")))

	u, err := s.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestStore_UserWithUnknownRoleIsAbsent(t *testing.T) {
	repo := metadata.NewMemoryRepository()
	s := NewStore(repo, logging.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, KeyUser, []byte(`{"id":"1","role":"root"}`)))

	u, err := s.User(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestStore_ProfileDataLifecycle(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			d, err := s.ProfileData(ctx, "u1")
			require.NoError(t, err)
			assert.Nil(t, d)

			in := &models.ProfileData{Bio: "hi", SocialLinks: map[string]string{"github": "ops"}}
			require.NoError(t, s.SetProfileData(ctx, "u1", in))
			require.NoError(t, s.SetProfileData(ctx, "u2", &models.ProfileData{Bio: "other"}))

			d, err = s.ProfileData(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, in, d)

			require.NoError(t, s.ClearProfileData(ctx, "u1"))
			d, err = s.ProfileData(ctx, "u1")
			require.NoError(t, err)
			assert.Nil(t, d)

			other, err := s.ProfileData(ctx, "u2")
			require.NoError(t, err)
			require.NotNil(t, other, "only the given user's profile is removed")
		})
	}
}

func TestStore_SelfTest(t *testing.T) {
	repo := metadata.NewMemoryRepository()
	s := NewStore(repo, logging.NewNop())
	ctx := context.Background()

	res := s.SelfTest(ctx)
	assert.True(t, res.Working)
	assert.Empty(t, res.Error)

	m, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m, "self-test must not leave keys behind")
}

type failingRepo struct {
	metadata.Repository
	err error
}

func (f failingRepo) Set(context.Context, string, []byte) error { return f.err }
func (f failingRepo) Get(context.Context, string) ([]byte, error) {
	return nil, f.err
}
func (f failingRepo) Delete(context.Context, string) error { return f.err }

func TestStore_DegradedStorage(t *testing.T) {
	s := NewStore(failingRepo{Repository: metadata.NewMemoryRepository(), err: errors.New("quota exceeded")}, logging.NewNop())
	ctx := context.Background()

	res := s.SelfTest(ctx)
	assert.False(t, res.Working)
	assert.Equal(t, "quota exceeded", res.Error)

	_, err := s.Token(ctx)
	require.ErrorContains(t, err, "quota exceeded")
	require.Error(t, s.Clear(ctx, "user logout"))
	require.Error(t, s.SaveSession(ctx, "t", sampleUser()))
}

func TestSQLiteStore_SaveSessionRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO metadata").WithArgs(KeyToken, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO metadata").WithArgs(KeyUser, sqlmock.AnyArg()).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	s := NewSQLiteStore(db, logging.NewNop())
	err = s.SaveSession(context.Background(), "aaaa.bbbb.cccc", sampleUser())
	require.ErrorContains(t, err, "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}
