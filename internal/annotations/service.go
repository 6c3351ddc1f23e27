package annotations

import (
	"context"
	"time"

	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/annotations"
	"github.com/anoixa/yolo-annotator/internal/apperr"
	"github.com/anoixa/yolo-annotator/internal/images"
	"github.com/anoixa/yolo-annotator/internal/yolo"
	"github.com/anoixa/yolo-annotator/utils"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BoxInput 客户端提交的像素坐标框
type BoxInput struct {
	ClassID   int
	ClassName string
	Color     string
	X         float64
	Y         float64
	Width     float64
	Height    float64
}

// Service 标注服务
type Service struct {
	repo   *annotations.Repository
	images *images.Service
}

func NewService(repo *annotations.Repository, imageSvc *images.Service) *Service {
	return &Service{repo: repo, images: imageSvc}
}

// Save 用新集合整体替换图片的标注
func (s *Service) Save(ctx context.Context, user *models.User, imageID string, boxes []BoxInput) ([]*models.Annotation, error) {
	img, err := s.images.Authorize(ctx, user, imageID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	set := make([]*models.Annotation, 0, len(boxes))
	for i, b := range boxes {
		set = append(set, &models.Annotation{
			ID:        uuid.NewString(),
			ImageID:   img.ID,
			ClassID:   b.ClassID,
			ClassName: b.ClassName,
			Color:     b.Color,
			X:         b.X,
			Y:         b.Y,
			Width:     b.Width,
			Height:    b.Height,
			// 同一批次内保持提交顺序
			CreatedAt: now.Add(time.Duration(i) * time.Microsecond),
			CreatedBy: user.ID,
		})
	}

	if err := s.repo.WithContext(ctx).ReplaceForImage(img.ID, set); err != nil {
		return nil, err
	}

	log.Debugf("Saved %d annotations for image %s", len(set), img.ID)
	return set, nil
}

// List 图片当前的标注集合
func (s *Service) List(ctx context.Context, user *models.User, imageID string) ([]*models.Annotation, error) {
	img, err := s.images.Authorize(ctx, user, imageID)
	if err != nil {
		return nil, err
	}
	return s.repo.WithContext(ctx).ListByImage(img.ID)
}

// Export 生成 YOLO 标签文件，返回文件名与内容
// 图片尺寸未知时内容为空串
func (s *Service) Export(ctx context.Context, user *models.User, imageID string) (string, string, error) {
	img, err := s.images.Authorize(ctx, user, imageID)
	if err != nil {
		return "", "", err
	}

	set, err := s.repo.WithContext(ctx).ListByImage(img.ID)
	if err != nil {
		return "", "", err
	}
	if len(set) == 0 {
		return "", "", apperr.NotFound("No annotations found for this image")
	}

	if !yolo.HasDimensions(img) {
		log.Warnf("Image %s has unknown dimensions, exporting empty label file", img.ID)
	}
	return utils.FileStem(img.Name) + ".txt", yolo.Export(img, set), nil
}
