package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/studio-b12/gowebdav"
)

// WebDAVConfig WebDAV 配置结构
type WebDAVConfig struct {
	URL      string
	Username string
	Password string
	RootPath string
	Timeout  time.Duration
}

// WebDAVStorage WebDAV 存储实现
type WebDAVStorage struct {
	client   *gowebdav.Client
	baseURL  string
	rootPath string
}

// NewWebDAVStorage 创建 WebDAV 存储提供者并验证连接
func NewWebDAVStorage(cfg WebDAVConfig) (*WebDAVStorage, error) {
	s, err := newWebDAVClient(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.run(ctx, func() error {
		return s.client.MkdirAll(s.rootDir(), os.FileMode(0755))
	}); err != nil {
		return nil, fmt.Errorf("webdav connection test failed: %w", err)
	}
	return s, nil
}

func newWebDAVClient(cfg WebDAVConfig) (*WebDAVStorage, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webdav URL is required")
	}

	rootPath := strings.Trim(cfg.RootPath, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}

	client := gowebdav.NewClient(cfg.URL, cfg.Username, cfg.Password)
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &WebDAVStorage{
		client:   client,
		rootPath: rootPath,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
	}, nil
}

// run 在 goroutine 中执行阻塞调用，使其响应 ctx 取消
func (s *WebDAVStorage) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *WebDAVStorage) rootDir() string {
	if s.rootPath == "" {
		return "/"
	}
	return s.rootPath
}

// fullPath 生成完整的 WebDAV 路径
func (s *WebDAVStorage) fullPath(storagePath string) string {
	storagePath = strings.TrimLeft(storagePath, "/")
	if s.rootPath != "" {
		return s.rootPath + "/" + storagePath
	}
	return "/" + storagePath
}

// SaveWithContext 保存文件到 WebDAV
func (s *WebDAVStorage) SaveWithContext(ctx context.Context, storagePath string, file io.Reader) error {
	if !IsValidStoragePath(storagePath) {
		return fmt.Errorf("invalid storage path: %s", storagePath)
	}

	fullPath := s.fullPath(storagePath)
	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("failed to read file content: %w", err)
	}

	err = s.run(ctx, func() error {
		if err := s.client.MkdirAll(path.Dir(fullPath), os.FileMode(0755)); err != nil {
			return fmt.Errorf("failed to ensure parent directory: %w", err)
		}
		return s.client.Write(fullPath, data, 0644)
	})
	if err != nil {
		return fmt.Errorf("failed to write file %s: %w", storagePath, err)
	}
	return nil
}

// GetWithContext 从 WebDAV 读取整个文件
func (s *WebDAVStorage) GetWithContext(ctx context.Context, storagePath string) (io.ReadSeeker, error) {
	var data []byte
	err := s.run(ctx, func() error {
		var err error
		data, err = s.client.Read(s.fullPath(storagePath))
		return err
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to read file %s: %w", storagePath, err)
	}
	return bytes.NewReader(data), nil
}

// DeleteWithContext 从 WebDAV 删除文件
func (s *WebDAVStorage) DeleteWithContext(ctx context.Context, storagePath string) error {
	exists, err := s.Exists(ctx, storagePath)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, storagePath)
	}

	return s.run(ctx, func() error {
		return s.client.Remove(s.fullPath(storagePath))
	})
}

// Exists 检查文件是否存在
func (s *WebDAVStorage) Exists(ctx context.Context, storagePath string) (bool, error) {
	exists := false
	err := s.run(ctx, func() error {
		_, err := s.client.Stat(s.fullPath(storagePath))
		if err == nil {
			exists = true
			return nil
		}
		if gowebdav.IsErrNotFound(err) {
			return nil
		}
		return err
	})
	return exists, err
}

// List 递归遍历 prefix 下的文件
func (s *WebDAVStorage) List(ctx context.Context, prefix string, fn func(identifier string) error) error {
	return s.walk(ctx, strings.Trim(prefix, "/"), fn)
}

func (s *WebDAVStorage) walk(ctx context.Context, rel string, fn func(identifier string) error) error {
	dir := s.rootDir()
	if rel != "" {
		dir = s.fullPath(rel)
	}

	var entries []os.FileInfo
	err := s.run(ctx, func() error {
		var err error
		entries, err = s.client.ReadDir(dir)
		return err
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	for _, entry := range entries {
		child := entry.Name()
		if rel != "" {
			child = rel + "/" + child
		}
		if entry.IsDir() {
			if err := s.walk(ctx, child, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(child); err != nil {
			return err
		}
	}
	return nil
}

// Health 检查存储健康状态
func (s *WebDAVStorage) Health(ctx context.Context) error {
	return s.run(ctx, func() error {
		_, err := s.client.ReadDir(s.rootDir())
		return err
	})
}

// Name 返回存储名称
func (s *WebDAVStorage) Name() string {
	return fmt.Sprintf("webdav:%s%s", s.baseURL, s.rootPath)
}
