package annotations

import (
	"testing"

	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRepo(t *testing.T) (*Repository, *database.GormProvider) {
	t.Helper()
	provider, err := database.NewMemoryProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	img := &models.Image{ID: "i1", ProjectID: "p1", Name: "a.png", FilePath: "images/p1/i1.png", Type: "image/png", UploadedBy: "u"}
	require.NoError(t, provider.DB().Create(img).Error)
	return NewRepository(provider), provider
}

func box(id string, classID int) *models.Annotation {
	return &models.Annotation{ID: id, ImageID: "i1", ClassID: classID, ClassName: "cat", Color: "#f00", X: 1, Y: 2, Width: 3, Height: 4, CreatedBy: "u"}
}

func imageStatus(t *testing.T, provider database.Provider) string {
	t.Helper()
	var img models.Image
	require.NoError(t, provider.DB().Where("id = ?", "i1").First(&img).Error)
	return img.Status
}

func TestReplaceForImage(t *testing.T) {
	repo, provider := setupTestRepo(t)

	require.NoError(t, repo.ReplaceForImage("i1", []*models.Annotation{box("a1", 0), box("a2", 1)}))
	list, err := repo.ListByImage("i1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, models.ImageStatusCompleted, imageStatus(t, provider))

	// 第二次保存完全替换
	require.NoError(t, repo.ReplaceForImage("i1", []*models.Annotation{box("a3", 2)}))
	list, err = repo.ListByImage("i1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a3", list[0].ID)
	assert.Equal(t, 2, list[0].ClassID)
}

func TestReplaceForImage_EmptyKeepsStatus(t *testing.T) {
	repo, provider := setupTestRepo(t)
	require.NoError(t, repo.ReplaceForImage("i1", []*models.Annotation{box("a1", 0)}))

	require.NoError(t, provider.DB().Model(&models.Image{}).Where("id = ?", "i1").Update("status", models.ImageStatusInProgress).Error)

	require.NoError(t, repo.ReplaceForImage("i1", nil))
	list, err := repo.ListByImage("i1")
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, models.ImageStatusInProgress, imageStatus(t, provider))
}

func TestReplaceForImage_RollbackOnDuplicate(t *testing.T) {
	repo, _ := setupTestRepo(t)
	require.NoError(t, repo.ReplaceForImage("i1", []*models.Annotation{box("a1", 0)}))

	err := repo.ReplaceForImage("i1", []*models.Annotation{box("dup", 0), box("dup", 1)})
	assert.Error(t, err)

	list, err := repo.ListByImage("i1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a1", list[0].ID)
}
