// Package yolo 在像素坐标框与 YOLO 归一化标签行之间转换
package yolo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anoixa/yolo-annotator/database/models"
)

// Label 一行 YOLO 标签，坐标均按图片尺寸归一化
type Label struct {
	ClassID int
	CX      float64
	CY      float64
	W       float64
	H       float64
}

// String 格式为 "<class_id> <cx> <cy> <w> <h>"，浮点保留 6 位小数
func (l Label) String() string {
	return fmt.Sprintf("%d %.6f %.6f %.6f %.6f", l.ClassID, l.CX, l.CY, l.W, l.H)
}

// Normalize 把左上角像素框换算为中心点归一化坐标，不做裁剪
func Normalize(a *models.Annotation, imageWidth, imageHeight int) Label {
	iw := float64(imageWidth)
	ih := float64(imageHeight)
	return Label{
		ClassID: a.ClassID,
		CX:      (a.X + a.Width/2) / iw,
		CY:      (a.Y + a.Height/2) / ih,
		W:       a.Width / iw,
		H:       a.Height / ih,
	}
}

// HasDimensions 图片宽高均已知且为正时才能导出
func HasDimensions(img *models.Image) bool {
	return img != nil && img.Width != nil && img.Height != nil && *img.Width > 0 && *img.Height > 0
}

// Export 生成图片的标签文本，行间以 "\n" 分隔，末尾无换行
func Export(img *models.Image, annotations []*models.Annotation) string {
	if !HasDimensions(img) || len(annotations) == 0 {
		return ""
	}

	lines := make([]string, 0, len(annotations))
	for _, a := range annotations {
		lines = append(lines, Normalize(a, *img.Width, *img.Height).String())
	}
	return strings.Join(lines, "\n")
}

// ParseLine 解析一行标签
func ParseLine(line string) (Label, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Label{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}

	classID, err := strconv.Atoi(fields[0])
	if err != nil {
		return Label{}, fmt.Errorf("invalid class id %q: %w", fields[0], err)
	}

	var values [4]float64
	for i, f := range fields[1:] {
		values[i], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return Label{}, fmt.Errorf("invalid coordinate %q: %w", f, err)
		}
	}

	return Label{ClassID: classID, CX: values[0], CY: values[1], W: values[2], H: values[3]}, nil
}

// Denormalize 把标签还原为左上角像素框
func (l Label) Denormalize(imageWidth, imageHeight int) (x, y, w, h float64) {
	iw := float64(imageWidth)
	ih := float64(imageHeight)
	w = l.W * iw
	h = l.H * ih
	x = l.CX*iw - w/2
	y = l.CY*ih - h/2
	return x, y, w, h
}
