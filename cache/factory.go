package cache

import (
	"fmt"

	"github.com/anoixa/yolo-annotator/cache/redis"
	"github.com/anoixa/yolo-annotator/cache/ristretto"
	"github.com/anoixa/yolo-annotator/cache/types"
	"github.com/anoixa/yolo-annotator/config"
	log "github.com/sirupsen/logrus"
)

// New 按 cache_type 创建缓存，"none" 返回 nil
func New(cfg *config.Config) (types.Cache, error) {
	switch cfg.CacheType {
	case "none", "":
		log.Info("Cache disabled")
		return nil, nil
	case "memory":
		c, err := ristretto.NewRistretto(ristretto.DefaultConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}
		log.Info("Using in-memory cache (ristretto)")
		return c, nil
	case "redis":
		c, err := redis.NewRedis(cfg.CacheRedisAddr, cfg.CacheRedisPassword, cfg.CacheRedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.CacheRedisAddr, err)
		}
		log.Infof("Using redis cache at %s", cfg.CacheRedisAddr)
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.CacheType)
	}
}
