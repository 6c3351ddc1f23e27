package images

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"testing"

	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/accounts"
	imagesrepo "github.com/anoixa/yolo-annotator/database/repo/images"
	projectsrepo "github.com/anoixa/yolo-annotator/database/repo/projects"
	"github.com/anoixa/yolo-annotator/internal/apperr"
	"github.com/anoixa/yolo-annotator/internal/projects"
	"github.com/anoixa/yolo-annotator/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore 第 failAt 次保存时返回错误
type failingStore struct {
	storage.Provider
	saves  int
	failAt int
}

func (f *failingStore) SaveWithContext(ctx context.Context, id string, r io.Reader) error {
	f.saves++
	if f.saves == f.failAt {
		return errors.New("disk full")
	}
	return f.Provider.SaveWithContext(ctx, id, r)
}

type fixture struct {
	svc      *Service
	provider *database.GormProvider
	store    *storage.LocalStorage
	project  *models.Project
	owner    *models.User
	outsider *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	provider, err := database.NewMemoryProvider()
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close() })

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	accountsRepo := accounts.NewRepository(provider)
	owner := &models.User{ID: "annotator-owner", Username: "owner", PasswordHash: "x", Role: models.RoleAnnotator}
	outsider := &models.User{ID: "annotator-out", Username: "out", PasswordHash: "x", Role: models.RoleAnnotator}
	require.NoError(t, accountsRepo.CreateUser(owner))
	require.NoError(t, accountsRepo.CreateUser(outsider))

	projectSvc := projects.NewService(projectsrepo.NewRepository(provider), accountsRepo, store)
	project, err := projectSvc.Create(context.Background(), owner, projects.CreateInput{Name: "P"})
	require.NoError(t, err)

	return &fixture{
		svc:      NewService(imagesrepo.NewRepository(provider), projectSvc, store, 1<<20),
		provider: provider,
		store:    store,
		project:  project,
		owner:    owner,
		outsider: outsider,
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func file(name, contentType string, data []byte) UploadFile {
	return UploadFile{
		Filename:    name,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	var keys []string
	require.NoError(t, f.store.List(context.Background(), "images/", func(id string) error {
		keys = append(keys, id)
		return nil
	}))
	return keys
}

func TestUpload(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, f.owner, f.project.ID, []UploadFile{
		file("cat.png", "image/png", pngBytes(t, 64, 32)),
		file("notes.txt", "text/plain", []byte("hello")),
		file("broken.jpg", "image/jpeg", []byte("not really a jpeg")),
	})
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, FailedFile{Filename: "notes.txt", Error: "Not an image file"}, res.Failed[0])

	require.Len(t, res.Uploaded, 2)
	cat := res.Uploaded[0]
	assert.Equal(t, "cat.png", cat.Name)
	assert.Equal(t, "images/"+f.project.ID+"/"+cat.ID+".png", cat.FilePath)
	require.NotNil(t, cat.Width)
	assert.Equal(t, 64, *cat.Width)
	assert.Equal(t, 32, *cat.Height)
	assert.Equal(t, models.ImageStatusPending, cat.Status)

	// 尺寸探测失败的文件仍被接收
	assert.Nil(t, res.Uploaded[1].Width)
	assert.Len(t, f.storedFiles(t), 2)

	count, err := f.svc.Count(ctx, f.owner, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUpload_AccessDenied(t *testing.T) {
	f := setup(t)

	_, err := f.svc.Upload(context.Background(), f.outsider, f.project.ID, []UploadFile{file("a.png", "image/png", []byte("x"))})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.Empty(t, f.storedFiles(t))

	_, err = f.svc.Upload(context.Background(), f.owner, "missing", nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpload_TooLarge(t *testing.T) {
	f := setup(t)

	res, err := f.svc.Upload(context.Background(), f.owner, f.project.ID, []UploadFile{
		file("big.png", "image/png", make([]byte, 1<<20+1)),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Uploaded)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed[0].Error, "maximum size")
}

func TestUpload_CommitFailureRemovesFiles(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, f.owner, f.project.ID, []UploadFile{file("first.png", "image/png", []byte("a"))})
	require.NoError(t, err)
	existing := res.Uploaded[0].ID

	// 第二个文件复用已存在的 ID，提交时主键冲突
	ids := []string{"00000000-0000-0000-0000-000000000001", existing}
	f.svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	_, err = f.svc.Upload(ctx, f.owner, f.project.ID, []UploadFile{
		file("a.png", "image/png", []byte("a")),
		file("b.jpg", "image/jpeg", []byte("b")),
	})
	require.Error(t, err)

	// 只剩第一次上传的文件
	assert.Equal(t, []string{res.Uploaded[0].FilePath}, f.storedFiles(t))

	count, err := f.svc.Count(ctx, f.owner, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpload_SaveFailureIsPerFile(t *testing.T) {
	f := setup(t)
	f.svc.storage = &failingStore{Provider: f.store, failAt: 2}

	res, err := f.svc.Upload(context.Background(), f.owner, f.project.ID, []UploadFile{
		file("a.png", "image/png", []byte("a")),
		file("b.png", "image/png", []byte("b")),
		file("c.png", "image/png", []byte("c")),
	})
	require.NoError(t, err)
	require.Len(t, res.Uploaded, 2)
	assert.Equal(t, "a.png", res.Uploaded[0].Name)
	assert.Equal(t, "c.png", res.Uploaded[1].Name)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, FailedFile{Filename: "b.png", Error: "Failed to save file"}, res.Failed[0])
	assert.Len(t, f.storedFiles(t), 2)

	n, err := f.svc.repo.CountByProject(f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDownloadUpdateDelete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, f.owner, f.project.ID, []UploadFile{file("a.png", "image/png", []byte("pixels"))})
	require.NoError(t, err)
	img := res.Uploaded[0]

	got, r, err := f.svc.Download(ctx, f.owner, img.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	storage.Close(r)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))
	assert.Equal(t, "image/png", got.Type)

	_, _, err = f.svc.Download(ctx, f.outsider, img.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	status := "bogus"
	_, err = f.svc.Update(ctx, f.owner, img.ID, UpdateInput{Status: &status})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	status = models.ImageStatusInProgress
	w, h := 640, 480
	updated, err := f.svc.Update(ctx, f.owner, img.ID, UpdateInput{Status: &status, Width: &w, Height: &h})
	require.NoError(t, err)
	assert.Equal(t, models.ImageStatusInProgress, updated.Status)
	assert.Equal(t, 640, *updated.Width)

	// 文件已经不在磁盘上
	require.NoError(t, f.store.DeleteWithContext(ctx, img.FilePath))
	_, _, err = f.svc.Download(ctx, f.owner, img.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "Image file not found on disk", apperr.Message(err))

	require.NoError(t, f.svc.Delete(ctx, f.owner, img.ID))
	_, err = f.svc.Get(ctx, f.owner, img.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList_Pagination(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var files []UploadFile
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		files = append(files, file(name, "image/png", []byte(name)))
	}
	_, err := f.svc.Upload(ctx, f.owner, f.project.ID, files)
	require.NoError(t, err)

	page, err := f.svc.List(ctx, f.owner, f.project.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)

	all, err := f.svc.List(ctx, f.owner, f.project.ID, 1, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.svc.List(ctx, f.outsider, f.project.ID, 1, 10)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t, "images/p/id.JPEG", StorageKey("p", "id", "photo.JPEG"))
	assert.Equal(t, "images/p/id", StorageKey("p", "id", "noext"))
	assert.Equal(t, "images/p/id.gz", StorageKey("p", "id", "x.tar.gz"))
}
