// Package dto 定义 HTTP 响应结构与模型转换
package dto

import (
	"time"

	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/images"
)

type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func User(u *models.User) UserResponse {
	return UserResponse{ID: u.ID, Username: u.Username, Role: u.Role, CreatedAt: u.CreatedAt}
}

func Users(list []*models.User) []UserResponse {
	out := make([]UserResponse, 0, len(list))
	for _, u := range list {
		out = append(out, User(u))
	}
	return out
}

type ProjectResponse struct {
	ID                 string                    `json:"id"`
	Name               string                    `json:"name"`
	ClassNames         []string                  `json:"class_names"`
	ClassDefinitions   []models.ClassDefinition  `json:"class_definitions"`
	CreatedAt          time.Time                 `json:"created_at"`
	UpdatedAt          time.Time                 `json:"updated_at"`
	CreatedBy          string                    `json:"created_by"`
	AssignedUsers      []string                  `json:"assigned_users"`
	DirectoryStructure models.DirectoryStructure `json:"directory_structure"`
}

func Project(p *models.Project) ProjectResponse {
	names := p.ClassNames
	if names == nil {
		names = []string{}
	}
	defs := p.ClassDefinitions
	if defs == nil {
		defs = []models.ClassDefinition{}
	}
	return ProjectResponse{
		ID:                 p.ID,
		Name:               p.Name,
		ClassNames:         names,
		ClassDefinitions:   defs,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
		CreatedBy:          p.CreatedBy,
		AssignedUsers:      p.AssignedUserIDs(),
		DirectoryStructure: p.DirectoryStructure,
	}
}

func Projects(list []*models.Project) []ProjectResponse {
	out := make([]ProjectResponse, 0, len(list))
	for _, p := range list {
		out = append(out, Project(p))
	}
	return out
}

// ImageResponse annotations 为标注数量
type ImageResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Size        int64     `json:"size"`
	FilePath    string    `json:"file_path"`
	UploadDate  time.Time `json:"upload_date"`
	UploadedBy  string    `json:"uploaded_by"`
	Status      string    `json:"status"`
	Width       *int      `json:"width"`
	Height      *int      `json:"height"`
	Annotations int64     `json:"annotations"`
}

func Image(img *models.Image, annotations int64) ImageResponse {
	return ImageResponse{
		ID:          img.ID,
		ProjectID:   img.ProjectID,
		Name:        img.Name,
		Type:        img.Type,
		Size:        img.Size,
		FilePath:    img.FilePath,
		UploadDate:  img.UploadDate,
		UploadedBy:  img.UploadedBy,
		Status:      img.Status,
		Width:       img.Width,
		Height:      img.Height,
		Annotations: annotations,
	}
}

func ImageSummaries(list []images.Summary) []ImageResponse {
	out := make([]ImageResponse, 0, len(list))
	for _, s := range list {
		out = append(out, Image(s.Image, s.AnnotationCount))
	}
	return out
}

// Pagination 列表分页信息
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}
