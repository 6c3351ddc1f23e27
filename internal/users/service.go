package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/accounts"
	"github.com/anoixa/yolo-annotator/internal/apperr"
	"github.com/anoixa/yolo-annotator/internal/auth"
	cryptopackage "github.com/anoixa/yolo-annotator/utils/crypto"
)

const (
	msgUsernameTaken = "Username already exists"
	msgNotFound      = "User not found"
)

// CreateInput 创建用户参数
type CreateInput struct {
	Username string
	Password string
	Role     string
}

// UpdateInput nil 字段保持不变
type UpdateInput struct {
	Username *string
	Password *string
	Role     *string
}

// Service 用户管理服务
type Service struct {
	repo  *accounts.Repository
	cache *auth.UserCache
}

// NewService 创建用户服务
func NewService(repo *accounts.Repository, cache *auth.UserCache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Create 创建用户
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, apperr.Validation("username is required")
	}
	if in.Password == "" {
		return nil, apperr.Validation("password is required")
	}
	if !models.IsValidRole(in.Role) {
		return nil, apperr.Validation(fmt.Sprintf("invalid role: %q", in.Role))
	}

	repo := s.repo.WithContext(ctx)
	exists, err := repo.UserExists(username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.BadRequest(msgUsernameTaken)
	}

	hash, err := cryptopackage.GenerateFromPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           models.NewUserID(in.Role),
		Username:     username,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := repo.CreateUser(user); err != nil {
		// 并发创建同名用户时由唯一索引兜底
		if taken, _ := repo.UserExists(username); taken {
			return nil, apperr.BadRequest(msgUsernameTaken)
		}
		return nil, err
	}
	return user, nil
}

// List 分页列出用户，page 从 1 开始
func (s *Service) List(ctx context.Context, page, limit int) ([]*models.User, int64, error) {
	offset := 0
	if page > 1 && limit > 0 {
		offset = (page - 1) * limit
	}
	return s.repo.WithContext(ctx).ListUsers(offset, limit)
}

// Get 获取用户
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.WithContext(ctx).GetUserByID(id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound(msgNotFound)
	}
	return user, nil
}

// Update 修改用户名、密码或角色
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldUsername := user.Username
	repo := s.repo.WithContext(ctx)

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username == "" {
			return nil, apperr.Validation("username must not be empty")
		}
		if username != user.Username {
			exists, err := repo.UserExists(username)
			if err != nil {
				return nil, err
			}
			if exists {
				return nil, apperr.BadRequest(msgUsernameTaken)
			}
			user.Username = username
		}
	}

	if in.Password != nil && *in.Password != "" {
		hash, err := cryptopackage.GenerateFromPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	if in.Role != nil && *in.Role != "" {
		if !models.IsValidRole(*in.Role) {
			return nil, apperr.Validation(fmt.Sprintf("invalid role: %q", *in.Role))
		}
		user.Role = *in.Role
	}

	if err := repo.UpdateUser(user); err != nil {
		return nil, apperr.BadRequest("Failed to update user")
	}

	s.invalidate(ctx, oldUsername, user.Username)
	return user, nil
}

// Delete 删除用户，不能删除自己
func (s *Service) Delete(ctx context.Context, actor *models.User, id string) error {
	if actor != nil && actor.ID == id {
		return apperr.BadRequest("Cannot delete yourself")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.WithContext(ctx).DeleteUser(user.ID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.invalidate(ctx, user.Username)
	return nil
}

// ResetPassword 按用户名重置密码，供命令行使用
func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	if password == "" {
		return apperr.Validation("password is required")
	}

	user, err := s.repo.WithContext(ctx).GetUserByUsername(username)
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.NotFound(msgNotFound)
	}

	_, err = s.Update(ctx, user.ID, UpdateInput{Password: &password})
	return err
}

func (s *Service) invalidate(ctx context.Context, usernames ...string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, usernames...)
	}
}
