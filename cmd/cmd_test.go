package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	imagesrepo "github.com/anoixa/yolo-annotator/database/repo/images"
	"github.com/anoixa/yolo-annotator/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *database.GormProvider {
	t.Helper()
	provider, err := database.NewMemoryProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })
	return provider
}

// seed 写入一个管理员、一个标注员、一个项目、两张图片和一条标注
func seed(t *testing.T, db *gorm.DB) {
	t.Helper()
	admin := &models.User{ID: "admin-1", Username: "root", PasswordHash: "hash-admin", Role: models.RoleAdmin}
	annotator := &models.User{ID: "annotator-1", Username: "alice", PasswordHash: "hash-alice", Role: models.RoleAnnotator}
	require.NoError(t, db.Create(admin).Error)
	require.NoError(t, db.Create(annotator).Error)

	project := &models.Project{
		ID:                 "p1",
		Name:               "street",
		CreatedBy:          admin.ID,
		ClassNames:         []string{"car", "person"},
		DirectoryStructure: models.NewDirectoryStructure("street"),
	}
	require.NoError(t, db.Omit("AssignedUsers").Create(project).Error)
	require.NoError(t, db.Create(&models.ProjectAssignment{ProjectID: "p1", UserID: annotator.ID}).Error)

	width, height := 640, 480
	images := []*models.Image{
		{ID: "img-1", ProjectID: "p1", Name: "a.png", FilePath: "images/p1/img-1.png", Size: 10, Type: "image/png", UploadedBy: admin.ID, Status: models.ImageStatusPending, Width: &width, Height: &height},
		{ID: "img-2", ProjectID: "p1", Name: "b.png", FilePath: "images/p1/img-2.png", Size: 10, Type: "image/png", UploadedBy: admin.ID, Status: models.ImageStatusCompleted},
	}
	require.NoError(t, db.Create(images).Error)
	require.NoError(t, db.Create(&models.Annotation{
		ID: "ann-1", ImageID: "img-1", ClassID: 1, ClassName: "person", Color: "#ff0000",
		X: 10, Y: 20, Width: 30, Height: 40, CreatedBy: annotator.ID,
	}).Error)
}

func count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	source := newTestDB(t)
	seed(t, source.DB())

	var buf bytes.Buffer
	metadata, err := writeBackup(source.DB(), source.Name(), &buf, nil)
	require.NoError(t, err)
	assert.Equal(t, tableNames(), metadata.Tables)
	assert.Equal(t, int64(2), metadata.RecordCount["users"])
	assert.Equal(t, int64(1), metadata.RecordCount["project_assignments"])
	assert.Equal(t, int64(2), metadata.RecordCount["images"])

	archive, err := readBackup(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Contains(t, archive.Files, "users.jsonl")
	assert.True(t, strings.Contains(string(archive.Files["users.jsonl"]), "hash-alice"))

	target := newTestDB(t)
	stats, err := restoreArchive(target.DB(), archive, restoreOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Restored["users"])
	assert.Equal(t, int64(1), stats.Restored["annotations"])

	var alice models.User
	require.NoError(t, target.DB().First(&alice, "username = ?", "alice").Error)
	assert.Equal(t, "hash-alice", alice.PasswordHash)

	var project models.Project
	require.NoError(t, target.DB().Preload("AssignedUsers").First(&project, "id = ?", "p1").Error)
	assert.Equal(t, []string{"car", "person"}, project.ClassNames)
	assert.Equal(t, []string{"annotator-1"}, project.AssignedUserIDs())

	var img models.Image
	require.NoError(t, target.DB().First(&img, "id = ?", "img-1").Error)
	require.NotNil(t, img.Width)
	assert.Equal(t, 640, *img.Width)

	var ann models.Annotation
	require.NoError(t, target.DB().First(&ann, "id = ?", "ann-1").Error)
	assert.Equal(t, 30.0, ann.Width)
}

func TestRestore_ConflictStrategies(t *testing.T) {
	source := newTestDB(t)
	seed(t, source.DB())

	var buf bytes.Buffer
	_, err := writeBackup(source.DB(), source.Name(), &buf, []string{"users"})
	require.NoError(t, err)
	archive, err := readBackup(&buf)
	require.NoError(t, err)

	target := newTestDB(t)
	stale := &models.User{ID: "annotator-1", Username: "alice", PasswordHash: "stale", Role: models.RoleAnnotator}
	require.NoError(t, target.DB().Create(stale).Error)

	stats, err := restoreArchive(target.DB(), archive, restoreOptions{OnConflict: conflictSkip})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Restored["users"])
	assert.Equal(t, int64(1), stats.Skipped["users"])

	var alice models.User
	require.NoError(t, target.DB().First(&alice, "id = ?", "annotator-1").Error)
	assert.Equal(t, "stale", alice.PasswordHash)

	_, err = restoreArchive(target.DB(), archive, restoreOptions{OnConflict: conflictOverwrite})
	require.NoError(t, err)
	require.NoError(t, target.DB().First(&alice, "id = ?", "annotator-1").Error)
	assert.Equal(t, "hash-alice", alice.PasswordHash)

	_, err = restoreArchive(target.DB(), archive, restoreOptions{OnConflict: conflictError})
	assert.Error(t, err)

	_, err = restoreArchive(target.DB(), archive, restoreOptions{OnConflict: "merge"})
	assert.Error(t, err)
}

func TestRestore_TruncateAndDryRun(t *testing.T) {
	source := newTestDB(t)
	seed(t, source.DB())

	var buf bytes.Buffer
	_, err := writeBackup(source.DB(), source.Name(), &buf, nil)
	require.NoError(t, err)
	archive, err := readBackup(&buf)
	require.NoError(t, err)

	target := newTestDB(t)
	require.NoError(t, target.DB().Create(&models.User{ID: "admin-x", Username: "other", PasswordHash: "x", Role: models.RoleAdmin}).Error)

	stats, err := restoreArchive(target.DB(), archive, restoreOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Restored["images"])
	assert.Equal(t, int64(1), count(t, target.DB(), &models.User{}))

	_, err = restoreArchive(target.DB(), archive, restoreOptions{Truncate: true})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count(t, target.DB(), &models.User{}))

	var other int64
	require.NoError(t, target.DB().Model(&models.User{}).Where("username = ?", "other").Count(&other).Error)
	assert.Zero(t, other)
}

func TestReadBackup_Invalid(t *testing.T) {
	_, err := readBackup(strings.NewReader("not a gzip stream"))
	assert.Error(t, err)

	_, err = selectTables([]string{"albums"})
	assert.Error(t, err)

	tables, err := selectTables([]string{"annotations", "users"})
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "users", tables[0].name)
}

func TestCopyTables(t *testing.T) {
	source := newTestDB(t)
	seed(t, source.DB())
	target := newTestDB(t)

	stats, err := copyTables(source.DB(), target.DB(), conflictSkip)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.copied["users"])
	assert.Equal(t, int64(1), stats.copied["project_assignments"])
	assert.Equal(t, int64(1), count(t, target.DB(), &models.Annotation{}))

	// 第二次复制全部跳过
	stats, err = copyTables(source.DB(), target.DB(), conflictSkip)
	require.NoError(t, err)
	assert.Zero(t, stats.copied["images"])
	assert.Equal(t, int64(2), stats.skipped["images"])
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "./data.db", maskDSN("./data.db"))
	long := strings.Repeat("x", 60)
	assert.Equal(t, strings.Repeat("x", 50)+"...", maskDSN(long))
}

func TestCleanOrphans(t *testing.T) {
	provider := newTestDB(t)
	seed(t, provider.DB())
	repo := imagesrepo.NewRepository(provider)

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	for _, key := range []string{"images/p1/img-1.png", "images/p1/stray.png", "images/gone/old.png"} {
		require.NoError(t, store.SaveWithContext(ctx, key, strings.NewReader("x")))
	}

	stats := cleanOrphans(ctx, repo, store, cleanOptions{DryRun: true})
	assert.Empty(t, stats.errors)
	assert.Equal(t, 1, stats.orphanDBRecords)
	assert.Equal(t, 2, stats.orphanStorageFiles)
	assert.Zero(t, stats.deletedDBRecords)
	assert.Equal(t, int64(2), count(t, provider.DB(), &models.Image{}))

	stats = cleanOrphans(ctx, repo, store, cleanOptions{})
	assert.Empty(t, stats.errors)
	assert.Equal(t, 1, stats.deletedDBRecords)
	assert.Equal(t, 2, stats.deletedStorageFiles)

	var ids []string
	require.NoError(t, provider.DB().Model(&models.Image{}).Pluck("id", &ids).Error)
	assert.Equal(t, []string{"img-1"}, ids)

	exists, err := store.Exists(ctx, "images/p1/img-1.png")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = store.Exists(ctx, "images/gone/old.png")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProjectOf(t *testing.T) {
	assert.Equal(t, "p1", projectOf("images/p1/a.png"))
	assert.Equal(t, "", projectOf("images/loose.png"))
}
