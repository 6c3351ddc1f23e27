package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/utils"
	cryptopackage "github.com/anoixa/yolo-annotator/utils/crypto"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository 账户仓库 - 封装所有账户相关的数据库操作
type Repository struct {
	db database.Provider
}

// NewRepository 创建新的账户仓库
func NewRepository(db database.Provider) *Repository {
	return &Repository{db: db}
}

// SeedResult 默认管理员创建结果
type SeedResult struct {
	Created  bool
	Username string
	Password string
	// Generated 为 true 表示密码为随机生成，需要告知操作者
	Generated bool
}

// CreateDefaultAdminUser 用户表为空时创建默认管理员
func (r *Repository) CreateDefaultAdminUser(username, password string) (*SeedResult, error) {
	count, err := r.CountUsers()
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		log.Debug("Users already exist, skipping default admin creation")
		return &SeedResult{Created: false, Username: username}, nil
	}

	generated := false
	if password == "" {
		password, err = utils.RandomPassword(16)
		if err != nil {
			return nil, err
		}
		generated = true
	}

	hashedPassword, err := cryptopackage.GenerateFromPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash default password: %w", err)
	}

	user := &models.User{
		ID:           models.NewUserID(models.RoleAdmin),
		Username:     username,
		PasswordHash: hashedPassword,
		Role:         models.RoleAdmin,
	}
	if err := r.CreateUser(user); err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	return &SeedResult{Created: true, Username: username, Password: password, Generated: generated}, nil
}

// GetUserByUsername 通过用户名获取用户
func (r *Repository) GetUserByUsername(username string) (*models.User, error) {
	var user models.User

	err := r.db.DB().Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// GetUserByID 通过ID获取用户
func (r *Repository) GetUserByID(id string) (*models.User, error) {
	var user models.User

	err := r.db.DB().Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &user, nil
}

// CreateUser 创建用户
func (r *Repository) CreateUser(user *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return nil
	})
}

// UpdateUser 更新用户
func (r *Repository) UpdateUser(user *models.User) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Save(user).Error
	})
}

// DeleteUser 删除用户及其项目分配
func (r *Repository) DeleteUser(userID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.ProjectAssignment{}).Error; err != nil {
			return fmt.Errorf("failed to delete user assignments: %w", err)
		}
		return tx.Where("id = ?", userID).Delete(&models.User{}).Error
	})
}

// UserExists 检查用户名是否已被占用
func (r *Repository) UserExists(username string) (bool, error) {
	var count int64
	err := r.db.DB().Model(&models.User{}).Where("username = ?", username).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountUsers 用户总数
func (r *Repository) CountUsers() (int64, error) {
	var count int64
	err := r.db.DB().Model(&models.User{}).Count(&count).Error
	return count, err
}

// ListUsers 分页获取用户，limit <= 0 时返回全部
func (r *Repository) ListUsers(offset, limit int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	db := r.db.DB().Model(&models.User{})
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := r.db.DB().Order("created_at asc").Offset(offset)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&users).Error
	return users, total, err
}

// WithContext 返回带上下文的仓库
func (r *Repository) WithContext(ctx context.Context) *Repository {
	return &Repository{db: database.Scoped(r.db, ctx)}
}
