package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/accounts"
	"github.com/anoixa/yolo-annotator/database/repo/projects"
	"github.com/anoixa/yolo-annotator/internal/apperr"
	"github.com/anoixa/yolo-annotator/storage"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	msgNotFound     = "Project not found"
	msgAccessDenied = "Access denied"
)

// CreateInput 创建项目参数，ClassNames 为 nil 时从 ClassDefinitions 推导或使用默认值
type CreateInput struct {
	Name             string
	ClassNames       []string
	ClassDefinitions []models.ClassDefinition
}

// UpdateInput nil 字段保持不变
type UpdateInput struct {
	Name             *string
	ClassNames       []string
	ClassDefinitions []models.ClassDefinition
}

// AssignmentResult 分配操作结果
type AssignmentResult struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
	Assigned  bool   `json:"assigned"`
	Message   string `json:"message"`
}

// Service 项目服务
type Service struct {
	repo     *projects.Repository
	accounts *accounts.Repository
	storage  storage.Provider
}

// NewService 创建项目服务
func NewService(repo *projects.Repository, accountsRepo *accounts.Repository, store storage.Provider) *Service {
	return &Service{repo: repo, accounts: accountsRepo, storage: store}
}

func classNamesFor(names []string, defs []models.ClassDefinition) []string {
	if names != nil {
		return names
	}
	if len(defs) > 0 {
		derived := make([]string, 0, len(defs))
		for _, d := range defs {
			derived = append(derived, d.Name)
		}
		return derived
	}
	return append([]string(nil), models.DefaultClassNames...)
}

// Create 创建项目，创建者自动加入分配列表
func (s *Service) Create(ctx context.Context, creator *models.User, in CreateInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("project name is required")
	}

	defs := in.ClassDefinitions
	if defs == nil {
		defs = []models.ClassDefinition{}
	}

	project := &models.Project{
		ID:                 uuid.NewString(),
		Name:               name,
		CreatedBy:          creator.ID,
		ClassNames:         classNamesFor(in.ClassNames, defs),
		ClassDefinitions:   defs,
		DirectoryStructure: models.NewDirectoryStructure(name),
	}

	if err := s.repo.WithContext(ctx).CreateProject(project, creator); err != nil {
		return nil, err
	}
	return project, nil
}

// List 管理员看到全部项目，其他用户看到自己创建或被分配的项目
func (s *Service) List(ctx context.Context, user *models.User) ([]*models.Project, error) {
	repo := s.repo.WithContext(ctx)
	if user.IsAdmin() {
		return repo.ListProjects()
	}
	return repo.ListProjectsForUser(user.ID)
}

// Authorize 加载项目并校验访问权限
func (s *Service) Authorize(ctx context.Context, user *models.User, projectID string) (*models.Project, error) {
	project, err := s.repo.WithContext(ctx).GetProjectByID(projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperr.NotFound(msgNotFound)
	}
	if !CanAccess(user, project) {
		return nil, apperr.Forbidden(msgAccessDenied)
	}
	return project, nil
}

// Get 获取项目
func (s *Service) Get(ctx context.Context, user *models.User, projectID string) (*models.Project, error) {
	return s.Authorize(ctx, user, projectID)
}

// Update 修改项目，改名时同步目录结构
func (s *Service) Update(ctx context.Context, user *models.User, projectID string, in UpdateInput) (*models.Project, error) {
	project, err := s.Authorize(ctx, user, projectID)
	if err != nil {
		return nil, err
	}
	if !CanManage(user, project) {
		return nil, apperr.Forbidden("Insufficient permissions to update project")
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apperr.Validation("project name must not be empty")
		}
		project.Name = name
		project.DirectoryStructure = models.NewDirectoryStructure(name)
	}
	if in.ClassNames != nil {
		project.ClassNames = in.ClassNames
	}
	if in.ClassDefinitions != nil {
		project.ClassDefinitions = in.ClassDefinitions
	}

	if err := s.repo.WithContext(ctx).UpdateProject(project); err != nil {
		return nil, err
	}
	return project, nil
}

// Delete 级联删除项目，之后尽力删除存储中的图片文件
func (s *Service) Delete(ctx context.Context, user *models.User, projectID string) error {
	project, err := s.Authorize(ctx, user, projectID)
	if err != nil {
		return err
	}
	if !CanManage(user, project) {
		return apperr.Forbidden("Insufficient permissions to delete project")
	}

	paths, err := s.repo.WithContext(ctx).DeleteProject(project.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(msgNotFound)
		}
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if s.storage != nil {
		if failed := storage.RemoveAll(ctx, s.storage, paths); len(failed) > 0 {
			log.Warnf("Project %s deleted, %d stored files could not be removed", project.ID, len(failed))
		}
	}
	return nil
}

func (s *Service) loadForAssignment(ctx context.Context, projectID, userID string) (*models.Project, error) {
	project, err := s.repo.WithContext(ctx).GetProjectByID(projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperr.NotFound(msgNotFound)
	}

	user, err := s.accounts.WithContext(ctx).GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User not found")
	}
	return project, nil
}

// Assign 分配用户，重复分配不报错
func (s *Service) Assign(ctx context.Context, projectID, userID string) (*AssignmentResult, error) {
	if _, err := s.loadForAssignment(ctx, projectID, userID); err != nil {
		return nil, err
	}

	added, err := s.repo.WithContext(ctx).AddAssignment(projectID, userID)
	if err != nil {
		return nil, err
	}

	msg := "User assigned to project"
	if !added {
		msg = "User already assigned to project"
	}
	return &AssignmentResult{ProjectID: projectID, UserID: userID, Assigned: true, Message: msg}, nil
}

// Unassign 取消分配，创建者不可取消，未分配时同样返回成功
func (s *Service) Unassign(ctx context.Context, projectID, userID string) (*AssignmentResult, error) {
	project, err := s.repo.WithContext(ctx).GetProjectByID(projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, apperr.NotFound(msgNotFound)
	}
	if project.CreatedBy == userID {
		return nil, apperr.BadRequest("Cannot unassign project creator")
	}

	if _, err := s.repo.WithContext(ctx).RemoveAssignment(projectID, userID); err != nil {
		return nil, err
	}
	return &AssignmentResult{ProjectID: projectID, UserID: userID, Assigned: false, Message: "User unassigned from project"}, nil
}
