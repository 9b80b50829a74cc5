package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRole_UnmarshalJSON_ClosedSet(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","role":"admin"}`), &u))
	assert.Equal(t, RoleAdmin, u.Role)
	assert.True(t, u.IsAdmin())

	err := json.Unmarshal([]byte(`{"id":"1","role":"superuser"}`), &u)
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("user")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, r)

	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrUnknownRole)
}

func TestUser_JSONRoundTripFieldNames(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	u := &User{ID: "42", Username: "ops", Email: "ops@example.com", FirstName: "Ada", Role: RoleUser, IsActive: true, CreatedAt: created, UpdatedAt: created}

	b, err := json.Marshal(u)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	for _, k := range []string{"id", "username", "email", "firstName", "lastName", "role", "isActive", "createdAt", "updatedAt"} {
		assert.Contains(t, raw, k)
	}
	assert.NotContains(t, raw, "lastLogin")
}

func TestUser_IsAdmin_NilSafe(t *testing.T) {
	var u *User
	assert.False(t, u.IsAdmin())
	assert.Nil(t, u.Clone())
	assert.Equal(t, "", u.DisplayName())
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}).DisplayName())
	assert.Equal(t, "Ada", (&User{FirstName: "Ada", Username: "ada"}).DisplayName())
	assert.Equal(t, "ada", (&User{Username: "ada"}).DisplayName())
}

func TestUserPatch_Apply_DoesNotMutateOriginal(t *testing.T) {
	last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := &User{ID: "1", Username: "ops", Email: "a@b.c", Role: RoleAdmin, LastLogin: &last}

	got := UserPatch{Email: strPtr("new@b.c"), LastName: strPtr("Smith")}.Apply(orig)

	want := &User{ID: "1", Username: "ops", Email: "new@b.c", LastName: "Smith", Role: RoleAdmin, LastLogin: &last}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("patched user mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "a@b.c", orig.Email)
	assert.NotSame(t, orig.LastLogin, got.LastLogin)
}

func TestUserPatch_IsEmpty(t *testing.T) {
	assert.True(t, UserPatch{}.IsEmpty())
	assert.False(t, UserPatch{FirstName: strPtr("x")}.IsEmpty())
	assert.Nil(t, UserPatch{FirstName: strPtr("x")}.Apply(nil))
}
