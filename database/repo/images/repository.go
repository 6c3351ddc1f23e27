package images

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Summary 图片及其标注数量
type Summary struct {
	*models.Image
	AnnotationCount int64
}

// Repository 图片仓库
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的图片仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: database.Scoped(r.db, ctx)}
}

// CreateImages 在一个事务中写入整批图片记录
func (r *Repository) CreateImages(images []*models.Image) error {
	if len(images) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&images).Error; err != nil {
			return fmt.Errorf("failed to create images: %w", err)
		}
		return nil
	})
}

// GetImageByID 获取图片
func (r *Repository) GetImageByID(id string) (*models.Image, error) {
	var image models.Image

	err := r.db.DB().Where("id = ?", id).First(&image).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &image, nil
}

// ListByProject 分页列出项目图片并附带标注数量，limit <= 0 时不分页
func (r *Repository) ListByProject(projectID string, offset, limit int) ([]Summary, error) {
	var images []*models.Image

	query := r.db.DB().Where("project_id = ?", projectID).Order("upload_date asc, id asc").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&images).Error; err != nil {
		return nil, err
	}

	counts, err := r.annotationCounts(images)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(images))
	for _, img := range images {
		summaries = append(summaries, Summary{Image: img, AnnotationCount: counts[img.ID]})
	}
	return summaries, nil
}

func (r *Repository) annotationCounts(images []*models.Image) (map[string]int64, error) {
	counts := make(map[string]int64, len(images))
	if len(images) == 0 {
		return counts, nil
	}

	ids := make([]string, 0, len(images))
	for _, img := range images {
		ids = append(ids, img.ID)
	}

	var rows []struct {
		ImageID string
		Count   int64
	}
	err := r.db.DB().Model(&models.Annotation{}).
		Select("image_id, COUNT(*) AS count").
		Where("image_id IN ?", ids).
		Group("image_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count annotations: %w", err)
	}

	for _, row := range rows {
		counts[row.ImageID] = row.Count
	}
	return counts, nil
}

// CountAnnotations 单张图片的标注数量
func (r *Repository) CountAnnotations(imageID string) (int64, error) {
	var count int64
	err := r.db.DB().Model(&models.Annotation{}).Where("image_id = ?", imageID).Count(&count).Error
	return count, err
}

// CountByProject 项目图片数量
func (r *Repository) CountByProject(projectID string) (int64, error) {
	var count int64
	err := r.db.DB().Model(&models.Image{}).Where("project_id = ?", projectID).Count(&count).Error
	return count, err
}

// UpdateImage 保存图片字段
func (r *Repository) UpdateImage(image *models.Image) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Save(image).Error
	})
}

// DeleteImages 删除图片及其标注
func (r *Repository) DeleteImages(ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id IN ?", ids).Delete(&models.Annotation{}).Error; err != nil {
			return fmt.Errorf("failed to delete annotations: %w", err)
		}
		result := tx.Where("id IN ?", ids).Delete(&models.Image{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete images: %w", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	return deleted, err
}

// ForEachBatch 分批遍历全部图片
func (r *Repository) ForEachBatch(batchSize int, fn func(batch []*models.Image) error) error {
	var batch []*models.Image
	result := r.db.DB().FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return result.Error
}

// ProjectIDs 返回全部项目 ID
func (r *Repository) ProjectIDs() ([]string, error) {
	var ids []string
	err := r.db.DB().Model(&models.Project{}).Pluck("id", &ids).Error
	return ids, err
}
