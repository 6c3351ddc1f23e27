package images

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/images"
	"github.com/anoixa/yolo-annotator/internal/apperr"
	"github.com/anoixa/yolo-annotator/internal/projects"
	"github.com/anoixa/yolo-annotator/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const msgImageNotFound = "Image not found"

// UpdateInput nil 字段保持不变
type UpdateInput struct {
	Status *string
	Width  *int
	Height *int
}

// Service 图片服务
type Service struct {
	repo     *images.Repository
	projects *projects.Service
	storage  storage.Provider
	maxSize  int64
	newID    func() string
}

// NewService maxSize 为单文件字节上限，<= 0 表示不限制
func NewService(repo *images.Repository, projectSvc *projects.Service, store storage.Provider, maxSize int64) *Service {
	return &Service{
		repo:     repo,
		projects: projectSvc,
		storage:  store,
		maxSize:  maxSize,
		newID:    uuid.NewString,
	}
}

// Authorize 加载图片并按所属项目校验访问权限
func (s *Service) Authorize(ctx context.Context, user *models.User, imageID string) (*models.Image, error) {
	img, err := s.repo.WithContext(ctx).GetImageByID(imageID)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, apperr.NotFound(msgImageNotFound)
	}

	if _, err := s.projects.Authorize(ctx, user, img.ProjectID); err != nil {
		switch {
		case errors.Is(err, apperr.ErrForbidden):
			return nil, apperr.Forbidden("Access denied to this image")
		case errors.Is(err, apperr.ErrNotFound):
			return nil, apperr.NotFound(msgImageNotFound)
		}
		return nil, err
	}
	return img, nil
}

// List 分页列出项目图片，page 从 1 开始，limit <= 0 返回全部
func (s *Service) List(ctx context.Context, user *models.User, projectID string, page, limit int) ([]images.Summary, error) {
	if _, err := s.projects.Authorize(ctx, user, projectID); err != nil {
		return nil, err
	}

	offset := 0
	if page > 1 && limit > 0 {
		offset = (page - 1) * limit
	}
	return s.repo.WithContext(ctx).ListByProject(projectID, offset, limit)
}

// Count 项目图片数量
func (s *Service) Count(ctx context.Context, user *models.User, projectID string) (int64, error) {
	if _, err := s.projects.Authorize(ctx, user, projectID); err != nil {
		return 0, err
	}
	return s.repo.WithContext(ctx).CountByProject(projectID)
}

// Get 获取图片及其标注数量
func (s *Service) Get(ctx context.Context, user *models.User, imageID string) (*images.Summary, error) {
	img, err := s.Authorize(ctx, user, imageID)
	if err != nil {
		return nil, err
	}

	count, err := s.repo.WithContext(ctx).CountAnnotations(img.ID)
	if err != nil {
		return nil, err
	}
	return &images.Summary{Image: img, AnnotationCount: count}, nil
}

// Download 打开存储中的原始文件，调用方负责 storage.Close
func (s *Service) Download(ctx context.Context, user *models.User, imageID string) (*models.Image, io.ReadSeeker, error) {
	img, err := s.Authorize(ctx, user, imageID)
	if err != nil {
		return nil, nil, err
	}

	r, err := s.storage.GetWithContext(ctx, img.FilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, apperr.NotFound("Image file not found on disk")
		}
		return nil, nil, fmt.Errorf("failed to open image file: %w", err)
	}
	return img, r, nil
}

// Update 修改状态或尺寸
func (s *Service) Update(ctx context.Context, user *models.User, imageID string, in UpdateInput) (*images.Summary, error) {
	img, err := s.Authorize(ctx, user, imageID)
	if err != nil {
		return nil, err
	}

	if in.Status != nil {
		if !models.IsValidImageStatus(*in.Status) {
			return nil, apperr.Validation(fmt.Sprintf("invalid status: %q", *in.Status))
		}
		img.Status = *in.Status
	}
	if in.Width != nil {
		img.Width = in.Width
	}
	if in.Height != nil {
		img.Height = in.Height
	}

	repo := s.repo.WithContext(ctx)
	if err := repo.UpdateImage(img); err != nil {
		return nil, err
	}

	count, err := repo.CountAnnotations(img.ID)
	if err != nil {
		return nil, err
	}
	return &images.Summary{Image: img, AnnotationCount: count}, nil
}

// Delete 删除文件与记录，文件缺失不视为错误
func (s *Service) Delete(ctx context.Context, user *models.User, imageID string) error {
	img, err := s.Authorize(ctx, user, imageID)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteWithContext(ctx, img.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete image file: %w", err)
	}

	if _, err := s.repo.WithContext(ctx).DeleteImages(img.ID); err != nil {
		log.Errorf("Image file %s removed but record deletion failed: %v", img.FilePath, err)
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
