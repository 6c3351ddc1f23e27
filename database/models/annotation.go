package models

import "time"

// Annotation 以像素坐标保存的标注框，(X, Y) 为左上角
type Annotation struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ImageID   string    `gorm:"size:36;not null;index" json:"image_id"`
	ClassID   int       `gorm:"not null" json:"class_id"`
	ClassName string    `gorm:"size:255;not null" json:"class_name"`
	Color     string    `gorm:"size:50;not null" json:"color"`
	X         float64   `gorm:"not null" json:"x"`
	Y         float64   `gorm:"not null" json:"y"`
	Width     float64   `gorm:"not null" json:"width"`
	Height    float64   `gorm:"not null" json:"height"`
	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `gorm:"size:64;not null" json:"created_by"`
}
