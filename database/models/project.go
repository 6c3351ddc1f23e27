package models

import (
	"fmt"
	"time"
)

// DefaultClassNames 未指定类别时项目使用的类别列表
var DefaultClassNames = []string{"object"}

// ClassDefinition 前端使用的类别定义
type ClassDefinition struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Key   string `json:"key"`
}

// DirectoryStructure YOLO 数据集导出时的目录布局
type DirectoryStructure struct {
	Images  string `json:"images"`
	Labels  string `json:"labels"`
	Classes string `json:"classes"`
}

// NewDirectoryStructure 根据项目名生成目录布局
func NewDirectoryStructure(projectName string) DirectoryStructure {
	base := fmt.Sprintf("/projects/%s", projectName)
	return DirectoryStructure{
		Images:  base + "/images",
		Labels:  base + "/labels",
		Classes: base + "/classes.txt",
	}
}

type Project struct {
	ID                 string             `gorm:"primaryKey;size:36" json:"id"`
	Name               string             `gorm:"size:255;not null;index" json:"name"`
	CreatedBy          string             `gorm:"size:64;not null;index" json:"created_by"`
	ClassNames         []string           `gorm:"serializer:json;type:text" json:"class_names"`
	ClassDefinitions   []ClassDefinition  `gorm:"serializer:json;type:text" json:"class_definitions"`
	DirectoryStructure DirectoryStructure `gorm:"serializer:json;type:text" json:"directory_structure"`
	AssignedUsers      []User             `gorm:"many2many:project_assignments" json:"-"`
	Images             []Image            `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// ProjectAssignment 项目与用户的多对多关联
type ProjectAssignment struct {
	ProjectID string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:64"`
}

func (ProjectAssignment) TableName() string {
	return "project_assignments"
}

// AssignedUserIDs 返回已分配用户的 ID 列表
func (p *Project) AssignedUserIDs() []string {
	ids := make([]string, 0, len(p.AssignedUsers))
	for _, u := range p.AssignedUsers {
		ids = append(ids, u.ID)
	}
	return ids
}

// HasMember 判断用户是否在已分配列表中
func (p *Project) HasMember(userID string) bool {
	for _, u := range p.AssignedUsers {
		if u.ID == userID {
			return true
		}
	}
	return false
}
