package images

import (
	"bytes"
	"image"

	// 注册解码器，DecodeConfig 只读取文件头
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// probeDimensions 读取图片宽高，无法识别时返回 nil
func probeDimensions(data []byte) (width, height *int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, nil
	}
	w, h := cfg.Width, cfg.Height
	return &w, &h
}
