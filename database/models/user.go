package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin     = "admin"
	RoleAnnotator = "annotator"
)

// User 系统账户，ID 形如 "{role}-{uuid}"
type User struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"size:20;not null;default:annotator" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUserID 生成带角色前缀的用户 ID
func NewUserID(role string) string {
	return role + "-" + uuid.NewString()
}

// IsValidRole 判断角色是否合法
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleAnnotator
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
