package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophadmin/internal/client/client"
	"github.com/dmitrijs2005/gophadmin/internal/client/models"
	"github.com/dmitrijs2005/gophadmin/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophadmin/internal/client/session"
	"github.com/dmitrijs2005/gophadmin/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-1",
		"exp": time.Now().Add(d).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func adminUser() *models.User {
	return &models.User{ID: "u-1", Username: "alice", Email: "alice@example.com", Role: models.RoleAdmin, IsActive: true}
}

func plainUser() *models.User {
	return &models.User{ID: "u-2", Username: "bob", Email: "bob@example.com", Role: models.RoleUser, IsActive: true}
}

func newMemStore() *session.KVStore {
	return session.NewStore(metadata.NewMemoryRepository(), logging.NewNop())
}

func sessionResponse(tok string, u *models.User) *client.AuthResponse {
	return &client.AuthResponse{
		Success: true,
		Message: "ok",
		Data:    &client.AuthData{User: u, AccessToken: tok},
	}
}

// clearRecordingStore remembers the reason of every Clear.
type clearRecordingStore struct {
	session.Store

	mu      sync.Mutex
	reasons []string
}

func (s *clearRecordingStore) Clear(ctx context.Context, reason string) error {
	s.mu.Lock()
	s.reasons = append(s.reasons, reason)
	s.mu.Unlock()
	return s.Store.Clear(ctx, reason)
}

func (s *clearRecordingStore) Reasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.reasons...)
}

// ---- fake client ----

// fakeClient implements client.Client with per-method hooks and call counts.
type fakeClient struct {
	mu    sync.Mutex
	calls map[string]int

	lastLogin client.LoginRequest

	LoginFn          func(ctx context.Context, req client.LoginRequest) (*client.AuthResponse, error)
	RegisterFn       func(ctx context.Context, req client.RegisterRequest) (*client.AuthResponse, error)
	MeFn             func(ctx context.Context) (*models.User, error)
	UpdateProfileFn  func(ctx context.Context, patch models.UserPatch) (*models.User, error)
	ChangePasswordFn func(ctx context.Context, req client.ChangePasswordRequest) (*client.AuthResponse, error)
	CreateAdminFn    func(ctx context.Context, req client.RegisterRequest) (*models.User, error)
	LogoutErr        error
}

func newFakeClient() *fakeClient {
	return &fakeClient{calls: map[string]int{}}
}

func (f *fakeClient) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeClient) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) Login(ctx context.Context, req client.LoginRequest) (*client.AuthResponse, error) {
	f.hit("login")
	f.mu.Lock()
	f.lastLogin = req
	f.mu.Unlock()
	if f.LoginFn == nil {
		return nil, errors.New("unexpected Login")
	}
	return f.LoginFn(ctx, req)
}

func (f *fakeClient) Register(ctx context.Context, req client.RegisterRequest) (*client.AuthResponse, error) {
	f.hit("register")
	if f.RegisterFn == nil {
		return nil, errors.New("unexpected Register")
	}
	return f.RegisterFn(ctx, req)
}

func (f *fakeClient) Me(ctx context.Context) (*models.User, error) {
	f.hit("me")
	if f.MeFn == nil {
		return nil, errors.New("unexpected Me")
	}
	return f.MeFn(ctx)
}

func (f *fakeClient) UpdateProfile(ctx context.Context, patch models.UserPatch) (*models.User, error) {
	f.hit("update-profile")
	if f.UpdateProfileFn == nil {
		return nil, errors.New("unexpected UpdateProfile")
	}
	return f.UpdateProfileFn(ctx, patch)
}

func (f *fakeClient) ChangePassword(ctx context.Context, req client.ChangePasswordRequest) (*client.AuthResponse, error) {
	f.hit("change-password")
	if f.ChangePasswordFn == nil {
		return nil, errors.New("unexpected ChangePassword")
	}
	return f.ChangePasswordFn(ctx, req)
}

func (f *fakeClient) CreateAdmin(ctx context.Context, req client.RegisterRequest) (*models.User, error) {
	f.hit("create-admin")
	if f.CreateAdminFn == nil {
		return nil, errors.New("unexpected CreateAdmin")
	}
	return f.CreateAdminFn(ctx, req)
}

func (f *fakeClient) Logout(context.Context) error {
	f.hit("logout")
	return f.LogoutErr
}

// ---- tests ----

func TestAuthService_LoginWritesThroughAndForcesAdminRole(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	tok := tokenExpiringIn(t, time.Hour)
	fc.LoginFn = func(context.Context, client.LoginRequest) (*client.AuthResponse, error) {
		return sessionResponse(tok, adminUser()), nil
	}
	store := newMemStore()
	svc := NewAuthService(fc, store, logging.NewNop())

	resp, err := svc.Login(ctx, "alice", "secret123")
	require.NoError(t, err)
	require.True(t, resp.HasSession())

	assert.Equal(t, client.LoginRequest{Identifier: "alice", Password: "secret123", Role: models.RoleAdmin}, fc.lastLogin)

	gotTok, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, gotTok)

	gotUser, err := store.User(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(adminUser(), gotUser); diff != "" {
		t.Fatalf("stored user mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthService_LoginWithoutSessionLeavesStoreEmpty(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	fc.LoginFn = func(context.Context, client.LoginRequest) (*client.AuthResponse, error) {
		return &client.AuthResponse{Success: true, Data: &client.AuthData{User: adminUser()}}, nil
	}
	store := newMemStore()
	svc := NewAuthService(fc, store, logging.NewNop())

	_, err := svc.Login(ctx, "alice", "pw")
	require.NoError(t, err)

	tok, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok)
}

func TestAuthService_LoginErrorKeepsAPIMessage(t *testing.T) {
	fc := newFakeClient()
	fc.LoginFn = func(context.Context, client.LoginRequest) (*client.AuthResponse, error) {
		return nil, &client.APIError{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	svc := NewAuthService(fc, newMemStore(), logging.NewNop())

	_, err := svc.Login(context.Background(), "alice", "bad")
	require.Error(t, err)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid credentials", apiErr.Message)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestAuthService_RegisterWritesThrough(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	tok := tokenExpiringIn(t, time.Hour)
	fc.RegisterFn = func(_ context.Context, req client.RegisterRequest) (*client.AuthResponse, error) {
		assert.Equal(t, "bob", req.Username)
		return sessionResponse(tok, plainUser()), nil
	}
	store := newMemStore()
	svc := NewAuthService(fc, store, logging.NewNop())

	_, err := svc.Register(ctx, client.RegisterRequest{Username: "bob", Email: "bob@example.com", Password: "pw"})
	require.NoError(t, err)

	got, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestAuthService_CurrentUser_InvalidLocalTokenSkipsNetwork(t *testing.T) {
	tests := []struct {
		name string
		tok  func(t *testing.T) string
	}{
		{name: "missing", tok: func(*testing.T) string { return "" }},
		{name: "malformed", tok: func(*testing.T) string { return "not-a-token" }},
		{name: "inside expiry buffer", tok: func(t *testing.T) string { return tokenExpiringIn(t, 4*time.Minute) }},
		{name: "expired", tok: func(t *testing.T) string { return tokenExpiringIn(t, -time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fc := newFakeClient()
			store := newMemStore()
			if tok := tt.tok(t); tok != "" {
				require.NoError(t, store.SaveSession(ctx, tok, adminUser()))
			}
			svc := NewAuthService(fc, store, logging.NewNop())

			_, err := svc.CurrentUser(ctx)
			require.ErrorIs(t, err, client.ErrInvalidLocalToken)
			assert.Zero(t, fc.Calls("me"))

			u, err := store.User(ctx)
			require.NoError(t, err)
			assert.Nil(t, u, "invalid token must clear the session")
		})
	}
}

func TestAuthService_CurrentUser_LeavesCachedUserAlone(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	fresh := adminUser()
	fresh.FirstName = "Alice"
	fc.MeFn = func(context.Context) (*models.User, error) { return fresh, nil }

	store := newMemStore()
	require.NoError(t, store.SaveSession(ctx, tokenExpiringIn(t, time.Hour), adminUser()))
	svc := NewAuthService(fc, store, logging.NewNop())

	got, err := svc.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FirstName)

	cached, err := store.User(ctx)
	require.NoError(t, err)
	assert.Empty(t, cached.FirstName, "persisting the answer is up to the caller")
}

func TestAuthService_CurrentUser_NetworkErrorKeepsStore(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	fc.MeFn = func(context.Context) (*models.User, error) { return nil, client.ErrUnavailable }

	store := newMemStore()
	tok := tokenExpiringIn(t, time.Hour)
	require.NoError(t, store.SaveSession(ctx, tok, adminUser()))
	svc := NewAuthService(fc, store, logging.NewNop())

	_, err := svc.CurrentUser(ctx)
	require.ErrorIs(t, err, client.ErrUnavailable)

	got, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, tok, got)
}

func TestAuthService_UpdateProfilePersistsServerCopy(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	fc.UpdateProfileFn = func(_ context.Context, p models.UserPatch) (*models.User, error) {
		return p.Apply(adminUser()), nil
	}
	store := newMemStore()
	require.NoError(t, store.SaveSession(ctx, tokenExpiringIn(t, time.Hour), adminUser()))
	svc := NewAuthService(fc, store, logging.NewNop())

	last := "Liddell"
	got, err := svc.UpdateProfile(ctx, models.UserPatch{LastName: &last})
	require.NoError(t, err)
	assert.Equal(t, "Liddell", got.LastName)

	cached, err := store.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Liddell", cached.LastName)
}

func TestAuthService_ChangePasswordRotatesToken(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	rotated := tokenExpiringIn(t, 2*time.Hour)
	fc.ChangePasswordFn = func(_ context.Context, req client.ChangePasswordRequest) (*client.AuthResponse, error) {
		assert.Equal(t, client.ChangePasswordRequest{CurrentPassword: "old", NewPassword: "new"}, req)
		return sessionResponse(rotated, adminUser()), nil
	}
	store := newMemStore()
	require.NoError(t, store.SaveSession(ctx, tokenExpiringIn(t, time.Hour), adminUser()))
	svc := NewAuthService(fc, store, logging.NewNop())

	_, err := svc.ChangePassword(ctx, "old", "new")
	require.NoError(t, err)

	got, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, rotated, got)
}

func TestAuthService_CreateAdminHasNoLocalEffect(t *testing.T) {
	ctx := context.Background()
	fc := newFakeClient()
	created := &models.User{ID: "u-9", Username: "carol", Role: models.RoleAdmin}
	fc.CreateAdminFn = func(context.Context, client.RegisterRequest) (*models.User, error) { return created, nil }

	store := newMemStore()
	require.NoError(t, store.SaveSession(ctx, tokenExpiringIn(t, time.Hour), adminUser()))
	svc := NewAuthService(fc, store, logging.NewNop())

	got, err := svc.CreateAdmin(ctx, client.RegisterRequest{Username: "carol"})
	require.NoError(t, err)
	assert.Equal(t, "u-9", got.ID)

	cached, err := store.User(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u-1", cached.ID)
}

func TestAuthService_LogoutClearsEvenWhenServerFails(t *testing.T) {
	for _, serverErr := range []error{nil, client.ErrUnavailable, &client.APIError{Status: http.StatusUnauthorized, Message: "expired"}} {
		ctx := context.Background()
		fc := newFakeClient()
		fc.LogoutErr = serverErr
		store := &clearRecordingStore{Store: newMemStore()}
		require.NoError(t, store.SaveSession(ctx, tokenExpiringIn(t, time.Hour), adminUser()))
		svc := NewAuthService(fc, store, logging.NewNop())

		require.NoError(t, svc.Logout(ctx, "idle timeout"))
		assert.Equal(t, 1, fc.Calls("logout"))
		assert.Equal(t, []string{"idle timeout"}, store.Reasons())

		tok, err := store.Token(ctx)
		require.NoError(t, err)
		assert.Empty(t, tok)
	}
}
