package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound 对象不存在，各实现统一包装为该错误
var ErrNotFound = errors.New("storage: object not found")

// Provider 存储提供者接口
// identifier 为相对 key，例如 images/<project_id>/<uuid>.jpg
type Provider interface {
	// SaveWithContext 保存文件到存储
	SaveWithContext(ctx context.Context, identifier string, file io.Reader) error

	// GetWithContext 从存储获取文件，调用方负责关闭实现了 io.Closer 的返回值
	GetWithContext(ctx context.Context, identifier string) (io.ReadSeeker, error)

	// DeleteWithContext 从存储删除文件，不存在时返回 ErrNotFound
	DeleteWithContext(ctx context.Context, identifier string) error

	// Exists 检查文件是否存在
	Exists(ctx context.Context, identifier string) (bool, error)

	// Health 检查存储健康状态
	Health(ctx context.Context) error

	// Name 返回存储名称
	Name() string
}

// Lister 可遍历 key 的存储，清理孤儿文件时使用
type Lister interface {
	List(ctx context.Context, prefix string, fn func(identifier string) error) error
}

// Close 关闭 GetWithContext 返回的读取器
func Close(r io.ReadSeeker) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}
