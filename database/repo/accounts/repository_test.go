package accounts

import (
	"testing"

	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	cryptopackage "github.com/anoixa/yolo-annotator/utils/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (*Repository, *database.GormProvider) {
	t.Helper()
	cryptopackage.SetParams(cryptopackage.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	t.Cleanup(func() { cryptopackage.SetParams(cryptopackage.DefaultParams) })

	provider, err := database.NewMemoryProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	return NewRepository(provider), provider
}

func TestCreateDefaultAdminUser(t *testing.T) {
	repo, _ := setupTestRepo(t)

	result, err := repo.CreateDefaultAdminUser("admin", "")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.True(t, result.Generated)
	assert.Len(t, result.Password, 16)

	user, err := repo.GetUserByUsername("admin")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.Contains(t, user.ID, "admin-")

	ok, err := cryptopackage.ComparePasswordAndHash(result.Password, user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	// 已有用户时不再创建
	again, err := repo.CreateDefaultAdminUser("root", "secret")
	require.NoError(t, err)
	assert.False(t, again.Created)

	count, err := repo.CountUsers()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateDefaultAdminUser_FixedPassword(t *testing.T) {
	repo, _ := setupTestRepo(t)

	result, err := repo.CreateDefaultAdminUser("admin", "admin123")
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.False(t, result.Generated)
	assert.Equal(t, "admin123", result.Password)
}

func TestGetUser_NotFound(t *testing.T) {
	repo, _ := setupTestRepo(t)

	user, err := repo.GetUserByID("missing")
	assert.NoError(t, err)
	assert.Nil(t, user)

	user, err = repo.GetUserByUsername("missing")
	assert.NoError(t, err)
	assert.Nil(t, user)
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	repo, _ := setupTestRepo(t)

	require.NoError(t, repo.CreateUser(&models.User{ID: "annotator-1", Username: "alice", PasswordHash: "x", Role: models.RoleAnnotator}))
	err := repo.CreateUser(&models.User{ID: "annotator-2", Username: "alice", PasswordHash: "x", Role: models.RoleAnnotator})
	assert.Error(t, err)

	exists, err := repo.UserExists("alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteUser_RemovesAssignments(t *testing.T) {
	repo, provider := setupTestRepo(t)

	user := &models.User{ID: "annotator-1", Username: "bob", PasswordHash: "x", Role: models.RoleAnnotator}
	require.NoError(t, repo.CreateUser(user))
	require.NoError(t, provider.DB().Create(&models.ProjectAssignment{ProjectID: "p1", UserID: user.ID}).Error)

	require.NoError(t, repo.DeleteUser(user.ID))

	var count int64
	require.NoError(t, provider.DB().Model(&models.ProjectAssignment{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Zero(t, count)

	got, err := repo.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListUsers(t *testing.T) {
	repo, _ := setupTestRepo(t)

	for _, name := range []string{"u1", "u2", "u3"} {
		require.NoError(t, repo.CreateUser(&models.User{ID: "annotator-" + name, Username: name, PasswordHash: "x", Role: models.RoleAnnotator}))
	}

	users, total, err := repo.ListUsers(0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 2)

	users, _, err = repo.ListUsers(0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}
