package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository 项目仓库
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的项目仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: database.Scoped(r.db, ctx)}
}

// CreateProject 创建项目并把创建者加入分配列表
func (r *Repository) CreateProject(project *models.Project, creator *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(project).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}

		assignment := &models.ProjectAssignment{ProjectID: project.ID, UserID: creator.ID}
		if err := tx.Create(assignment).Error; err != nil {
			return fmt.Errorf("failed to assign creator: %w", err)
		}

		project.AssignedUsers = []models.User{*creator}
		return nil
	})
}

// GetProjectByID 获取项目及已分配用户
func (r *Repository) GetProjectByID(id string) (*models.Project, error) {
	var project models.Project

	err := r.db.DB().Preload("AssignedUsers").Where("id = ?", id).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &project, nil
}

// ListProjects 列出全部项目
func (r *Repository) ListProjects() ([]*models.Project, error) {
	var projects []*models.Project
	err := r.db.DB().Preload("AssignedUsers").Order("created_at desc").Find(&projects).Error
	return projects, err
}

// ListProjectsForUser 列出用户创建或被分配的项目
func (r *Repository) ListProjectsForUser(userID string) ([]*models.Project, error) {
	var projects []*models.Project

	db := r.db.DB()
	assigned := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.ProjectAssignment{}).
		Select("project_id").
		Where("user_id = ?", userID)

	err := db.Preload("AssignedUsers").
		Where("created_by = ?", userID).
		Or("id IN (?)", assigned).
		Order("created_at desc").
		Find(&projects).Error
	return projects, err
}

// UpdateProject 保存项目字段，不触碰关联
func (r *Repository) UpdateProject(project *models.Project) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Omit(clause.Associations).Save(project).Error
	})
}

// DeleteProject 级联删除项目、图片、标注与分配，返回被删除图片的存储路径
func (r *Repository) DeleteProject(projectID string) ([]string, error) {
	var filePaths []string

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Where("id = ?", projectID).First(&project).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Image{}).Where("project_id = ?", projectID).Pluck("file_path", &filePaths).Error; err != nil {
			return fmt.Errorf("failed to list project images: %w", err)
		}

		imageIDs := tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.Image{}).
			Select("id").
			Where("project_id = ?", projectID)
		if err := tx.Where("image_id IN (?)", imageIDs).Delete(&models.Annotation{}).Error; err != nil {
			return fmt.Errorf("failed to delete annotations: %w", err)
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Image{}).Error; err != nil {
			return fmt.Errorf("failed to delete images: %w", err)
		}
		if err := tx.Where("project_id = ?", projectID).Delete(&models.ProjectAssignment{}).Error; err != nil {
			return fmt.Errorf("failed to delete assignments: %w", err)
		}
		return tx.Delete(&project).Error
	})
	if err != nil {
		return nil, err
	}
	return filePaths, nil
}

// IsAssigned 用户是否已分配到项目
func (r *Repository) IsAssigned(projectID, userID string) (bool, error) {
	var count int64
	err := r.db.DB().Model(&models.ProjectAssignment{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&count).Error
	return count > 0, err
}

// AddAssignment 分配用户，已存在时返回 false
func (r *Repository) AddAssignment(projectID, userID string) (bool, error) {
	added := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ProjectAssignment{ProjectID: projectID, UserID: userID})
		if result.Error != nil {
			return fmt.Errorf("failed to assign user: %w", result.Error)
		}
		added = result.RowsAffected > 0
		return nil
	})
	return added, err
}

// RemoveAssignment 取消分配，原本未分配时返回 false
func (r *Repository) RemoveAssignment(projectID, userID string) (bool, error) {
	removed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("project_id = ? AND user_id = ?", projectID, userID).
			Delete(&models.ProjectAssignment{})
		if result.Error != nil {
			return fmt.Errorf("failed to unassign user: %w", result.Error)
		}
		removed = result.RowsAffected > 0
		return nil
	})
	return removed, err
}
