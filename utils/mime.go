package utils

import (
	"path/filepath"
	"strings"
)

// IsImageContentType 判断声明的 Content-Type 是否为图片
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// SafeExtension 保留原始文件扩展名，去掉存储路径不允许的字符
func SafeExtension(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}

	var sb strings.Builder
	sb.WriteByte('.')
	for _, r := range ext[1:] {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 1 {
		return ""
	}
	return sb.String()
}

// FileStem 返回去掉扩展名的文件名
func FileStem(filename string) string {
	base := filepath.Base(filename)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" {
		return stem
	}
	return base
}
