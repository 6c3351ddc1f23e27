package ristretto

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anoixa/yolo-annotator/cache/types"
	"github.com/dgraph-io/ristretto"
)

// Ristretto 进程内缓存，值以 JSON 存储以隔离调用方的可变对象
type Ristretto struct {
	client *ristretto.Cache
}

// Config Ristretto配置
type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

// DefaultConfig 适合少量账户数据的默认配置
var DefaultConfig = Config{
	NumCounters: 10_000,
	MaxCost:     8 << 20,
	BufferItems: 64,
}

// NewRistretto 创建新的Ristretto实例
func NewRistretto(config Config) (*Ristretto, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: config.NumCounters,
		MaxCost:     config.MaxCost,
		BufferItems: config.BufferItems,
		Metrics:     config.Metrics,
	})
	if err != nil {
		return nil, err
	}

	return &Ristretto{client: cache}, nil
}

// Set 设置缓存项
func (r *Ristretto) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if r.client.SetWithTTL(key, data, int64(len(data)), expiration) {
		// 等待值被实际设置
		r.client.Wait()
	}
	return nil
}

// Get 获取缓存项
func (r *Ristretto) Get(_ context.Context, key string, dest interface{}) error {
	value, found := r.client.Get(key)
	if !found {
		return types.ErrCacheMiss
	}

	data, ok := value.([]byte)
	if !ok {
		return types.ErrCacheMiss
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return types.ErrCacheMiss
	}
	return nil
}

// Delete 删除缓存项
func (r *Ristretto) Delete(_ context.Context, key string) error {
	r.client.Del(key)
	return nil
}

// Exists 检查缓存项是否存在
func (r *Ristretto) Exists(_ context.Context, key string) (bool, error) {
	_, found := r.client.Get(key)
	return found, nil
}

// Close 关闭缓存连接
func (r *Ristretto) Close() error {
	r.client.Close()
	return nil
}

func (r *Ristretto) Name() string {
	return "memory"
}
