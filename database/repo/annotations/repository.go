package annotations

import (
	"context"
	"fmt"

	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	"gorm.io/gorm"
)

// Repository 标注仓库
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的标注仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: database.Scoped(r.db, ctx)}
}

// ReplaceForImage 在一个事务里先删后插，新集合非空时把图片标记为 completed
func (r *Repository) ReplaceForImage(imageID string, annotations []*models.Annotation) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", imageID).Delete(&models.Annotation{}).Error; err != nil {
			return fmt.Errorf("failed to clear annotations: %w", err)
		}

		if len(annotations) == 0 {
			return nil
		}

		if err := tx.Create(&annotations).Error; err != nil {
			return fmt.Errorf("failed to insert annotations: %w", err)
		}

		err := tx.Model(&models.Image{}).
			Where("id = ?", imageID).
			Update("status", models.ImageStatusCompleted).Error
		if err != nil {
			return fmt.Errorf("failed to update image status: %w", err)
		}
		return nil
	})
}

// ListByImage 按创建顺序列出图片的标注
func (r *Repository) ListByImage(imageID string) ([]*models.Annotation, error) {
	var annotations []*models.Annotation
	err := r.db.DB().Where("image_id = ?", imageID).Order("created_at asc, id asc").Find(&annotations).Error
	return annotations, err
}
