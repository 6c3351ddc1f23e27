package models

import "time"

const (
	ImageStatusPending    = "pending"
	ImageStatusInProgress = "in-progress"
	ImageStatusCompleted  = "completed"
)

// IsValidImageStatus 判断状态取值是否合法
func IsValidImageStatus(status string) bool {
	switch status {
	case ImageStatusPending, ImageStatusInProgress, ImageStatusCompleted:
		return true
	}
	return false
}

// Image 上传到项目中的图片，FilePath 为存储层的 key
type Image struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string       `gorm:"size:36;not null;index" json:"project_id"`
	Name        string       `gorm:"size:255;not null" json:"name"`
	FilePath    string       `gorm:"size:512;not null" json:"file_path"`
	Size        int64        `gorm:"not null" json:"size"`
	Type        string       `gorm:"size:100;not null" json:"type"`
	UploadDate  time.Time    `gorm:"autoCreateTime" json:"upload_date"`
	UploadedBy  string       `gorm:"size:64;not null" json:"uploaded_by"`
	Status      string       `gorm:"size:20;not null;default:pending;index" json:"status"`
	Width       *int         `json:"width"`
	Height      *int         `json:"height"`
	Annotations []Annotation `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
