package users

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/anoixa/yolo-annotator/cache/ristretto"
	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/accounts"
	"github.com/anoixa/yolo-annotator/internal/apperr"
	"github.com/anoixa/yolo-annotator/internal/auth"
	cryptopackage "github.com/anoixa/yolo-annotator/utils/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupService(t *testing.T) (*Service, *auth.UserCache) {
	t.Helper()
	cryptopackage.SetParams(cryptopackage.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	t.Cleanup(func() { cryptopackage.SetParams(cryptopackage.DefaultParams) })

	provider, err := database.NewMemoryProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	c, err := ristretto.NewRistretto(ristretto.DefaultConfig)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	repo := accounts.NewRepository(provider)
	userCache := auth.NewUserCache(repo, c, time.Minute)
	return NewService(repo, userCache), userCache
}

func strPtr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	user, err := svc.Create(ctx, CreateInput{Username: "alice", Password: "pw", Role: models.RoleAnnotator})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(user.ID, "annotator-"))
	assert.NotEqual(t, "pw", user.PasswordHash)

	_, err = svc.Create(ctx, CreateInput{Username: "alice", Password: "pw2", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Equal(t, "Username already exists", apperr.Message(err))
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	cases := []CreateInput{
		{Username: "", Password: "pw", Role: models.RoleAdmin},
		{Username: "bob", Password: "", Role: models.RoleAdmin},
		{Username: "bob", Password: "pw", Role: "superuser"},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, in)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	}
}

func TestUpdate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	alice, err := svc.Create(ctx, CreateInput{Username: "alice", Password: "pw", Role: models.RoleAnnotator})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{Username: "bob", Password: "pw", Role: models.RoleAnnotator})
	require.NoError(t, err)

	_, err = svc.Update(ctx, alice.ID, UpdateInput{Username: strPtr("bob")})
	assert.ErrorIs(t, err, apperr.ErrBadRequest)

	_, err = svc.Update(ctx, alice.ID, UpdateInput{Role: strPtr("root")})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	updated, err := svc.Update(ctx, alice.ID, UpdateInput{Username: strPtr("alice2"), Password: strPtr("new"), Role: strPtr(models.RoleAdmin)})
	require.NoError(t, err)
	assert.Equal(t, "alice2", updated.Username)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	// ID 前缀在创建时确定，修改角色不改变 ID
	assert.Equal(t, alice.ID, updated.ID)

	ok, err := cryptopackage.ComparePasswordAndHash("new", updated.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.Update(ctx, "missing", UpdateInput{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate_InvalidatesCache(t *testing.T) {
	svc, userCache := setupService(t)
	ctx := context.Background()

	alice, err := svc.Create(ctx, CreateInput{Username: "alice", Password: "pw", Role: models.RoleAnnotator})
	require.NoError(t, err)

	cached, err := userCache.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, cached)

	_, err = svc.Update(ctx, alice.ID, UpdateInput{Role: strPtr(models.RoleAdmin)})
	require.NoError(t, err)

	cached, err = userCache.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, cached.Role)
}

func TestDelete(t *testing.T) {
	svc, userCache := setupService(t)
	ctx := context.Background()

	admin, err := svc.Create(ctx, CreateInput{Username: "admin", Password: "pw", Role: models.RoleAdmin})
	require.NoError(t, err)
	bob, err := svc.Create(ctx, CreateInput{Username: "bob", Password: "pw", Role: models.RoleAnnotator})
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, admin.ID)
	assert.ErrorIs(t, err, apperr.ErrBadRequest)
	assert.Equal(t, "Cannot delete yourself", apperr.Message(err))

	_, err = userCache.GetByUsername(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, bob.ID))

	gone, err := userCache.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, gone)

	err = svc.Delete(ctx, admin, bob.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListAndResetPassword(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	for _, name := range []string{"u1", "u2", "u3"} {
		_, err := svc.Create(ctx, CreateInput{Username: name, Password: "pw", Role: models.RoleAnnotator})
		require.NoError(t, err)
	}

	page, total, err := svc.List(ctx, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, page, 1)

	require.NoError(t, svc.ResetPassword(ctx, "u1", "fresh"))
	assert.ErrorIs(t, svc.ResetPassword(ctx, "nobody", "x"), apperr.ErrNotFound)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "u1", ""), apperr.ErrValidation)
}
