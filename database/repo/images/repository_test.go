package images

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
	return NewRepository(provider), provider
}

func newImage(id, projectID string) *models.Image {
	return &models.Image{
		ID:         id,
		ProjectID:  projectID,
		Name:       id + ".png",
		FilePath:   "images/" + projectID + "/" + id + ".png",
		Size:       10,
		Type:       "image/png",
		UploadedBy: "annotator-1",
	}
}

func TestCreateImages_Batch(t *testing.T) {
	repo, _ := setupTestRepo(t)

	require.NoError(t, repo.CreateImages([]*models.Image{newImage("i1", "p1"), newImage("i2", "p1"), newImage("i3", "p2")}))
	require.NoError(t, repo.CreateImages(nil))

	count, err := repo.CountByProject("p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	img, err := repo.GetImageByID("i1")
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, models.ImageStatusPending, img.Status)
	assert.Nil(t, img.Width)
	assert.False(t, img.UploadDate.IsZero())
}

func TestCreateImages_RollsBackOnConflict(t *testing.T) {
	repo, _ := setupTestRepo(t)
	require.NoError(t, repo.CreateImages([]*models.Image{newImage("i1", "p1")}))

	err := repo.CreateImages([]*models.Image{newImage("i2", "p1"), newImage("i1", "p1")})
	assert.Error(t, err)

	img, err := repo.GetImageByID("i2")
	require.NoError(t, err)
	assert.Nil(t, img)
}

func TestListByProject_WithCounts(t *testing.T) {
	repo, provider := setupTestRepo(t)
	require.NoError(t, repo.CreateImages([]*models.Image{newImage("i1", "p1"), newImage("i2", "p1"), newImage("i3", "p1")}))

	for _, id := range []string{"a1", "a2"} {
		require.NoError(t, provider.DB().Create(&models.Annotation{ID: id, ImageID: "i2", ClassName: "cat", Color: "#f00", Width: 1, Height: 1, CreatedBy: "u"}).Error)
	}

	all, err := repo.ListByProject("p1", 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)

	counts := map[string]int64{}
	for _, s := range all {
		counts[s.ID] = s.AnnotationCount
	}
	assert.Equal(t, map[string]int64{"i1": 0, "i2": 2, "i3": 0}, counts)

	page, err := repo.ListByProject("p1", 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	empty, err := repo.ListByProject("p1", 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)

	n, err := repo.CountAnnotations("i2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpdateAndDeleteImages(t *testing.T) {
	repo, provider := setupTestRepo(t)
	require.NoError(t, repo.CreateImages([]*models.Image{newImage("i1", "p1"), newImage("i2", "p1")}))
	require.NoError(t, provider.DB().Create(&models.Annotation{ID: "a1", ImageID: "i1", ClassName: "cat", Color: "#f00", Width: 1, Height: 1, CreatedBy: "u"}).Error)

	img, err := repo.GetImageByID("i1")
	require.NoError(t, err)
	img.Status = models.ImageStatusInProgress
	require.NoError(t, repo.UpdateImage(img))

	img, err = repo.GetImageByID("i1")
	require.NoError(t, err)
	assert.Equal(t, models.ImageStatusInProgress, img.Status)

	deleted, err := repo.DeleteImages("i1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err := repo.CountAnnotations("i1")
	require.NoError(t, err)
	assert.Zero(t, n)

	deleted, err = repo.DeleteImages("i1")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestForEachBatch(t *testing.T) {
	repo, _ := setupTestRepo(t)
	require.NoError(t, repo.CreateImages([]*models.Image{newImage("i1", "p1"), newImage("i2", "p1"), newImage("i3", "p1")}))

	var seen []string
	batches := 0
	err := repo.ForEachBatch(2, func(batch []*models.Image) error {
		batches++
		for _, img := range batch {
			seen = append(seen, img.ID)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, batches)
	assert.Equal(t, []string{"i1", "i2", "i3"}, seen)
}
