package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/storage"
	"github.com/anoixa/yolo-annotator/utils"
	log "github.com/sirupsen/logrus"
)

// UploadFile 单个待上传文件，Open 每次返回新的读取器
type UploadFile struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FailedFile 未被接收的文件及原因
type FailedFile struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// UploadResult 批量上传结果
type UploadResult struct {
	Uploaded []*models.Image
	Failed   []FailedFile
}

// StorageKey 图片在存储中的 key
func StorageKey(projectID, id, filename string) string {
	return path.Join("images", projectID, id+utils.SafeExtension(filename))
}

// Upload 逐个校验并写入存储，最后在一个事务里提交全部记录
// 单个文件写入失败记入 Failed；提交失败时删除本批已写入的文件并返回错误
func (s *Service) Upload(ctx context.Context, user *models.User, projectID string, files []UploadFile) (*UploadResult, error) {
	if _, err := s.projects.Authorize(ctx, user, projectID); err != nil {
		return nil, err
	}

	result := &UploadResult{Uploaded: []*models.Image{}, Failed: []FailedFile{}}
	var written []string

	abort := func(err error) (*UploadResult, error) {
		if failed := storage.RemoveAll(context.WithoutCancel(ctx), s.storage, written); len(failed) > 0 {
			log.Errorf("Upload rollback left %d orphaned files in project %s", len(failed), projectID)
		}
		return nil, err
	}

	for _, f := range files {
		if !utils.IsImageContentType(f.ContentType) {
			result.Failed = append(result.Failed, FailedFile{Filename: f.Filename, Error: "Not an image file"})
			continue
		}

		data, err := s.readFile(f)
		if err != nil {
			result.Failed = append(result.Failed, FailedFile{Filename: f.Filename, Error: err.Error()})
			continue
		}

		id := s.newID()
		key := StorageKey(projectID, id, f.Filename)
		if err := s.storage.SaveWithContext(ctx, key, bytes.NewReader(data)); err != nil {
			log.Warnf("Failed to store %q in project %s: %v", utils.SanitizeLogMessage(f.Filename), projectID, err)
			result.Failed = append(result.Failed, FailedFile{Filename: f.Filename, Error: "Failed to save file"})
			continue
		}
		written = append(written, key)

		width, height := probeDimensions(data)
		result.Uploaded = append(result.Uploaded, &models.Image{
			ID:         id,
			ProjectID:  projectID,
			Name:       f.Filename,
			FilePath:   key,
			Size:       int64(len(data)),
			Type:       f.ContentType,
			UploadedBy: user.ID,
			Status:     models.ImageStatusPending,
			Width:      width,
			Height:     height,
		})
	}

	if err := s.repo.WithContext(ctx).CreateImages(result.Uploaded); err != nil {
		return abort(fmt.Errorf("database error: %w", err))
	}

	log.Infof("Uploaded %d images to project %s (%d rejected)", len(result.Uploaded), projectID, len(result.Failed))
	return result, nil
}

func (s *Service) readFile(f UploadFile) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer rc.Close()

	r := io.Reader(rc)
	if s.maxSize > 0 {
		r = io.LimitReader(rc, s.maxSize+1)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if s.maxSize > 0 && int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("File exceeds maximum size of %d MB", s.maxSize>>20)
	}
	return data, nil
}
