package auth

import (
	"context"
	"time"

	"github.com/anoixa/yolo-annotator/cache"
	"github.com/anoixa/yolo-annotator/cache/types"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/database/repo/accounts"
	log "github.com/sirupsen/logrus"
)

// UserCache 按用户名查找当前用户，命中缓存时跳过数据库
// 缓存的 User 不含密码哈希，只用于身份与角色判断
type UserCache struct {
	repo  *accounts.Repository
	cache types.Cache
	ttl   time.Duration
}

// NewUserCache c 为 nil 时直接查库
func NewUserCache(repo *accounts.Repository, c types.Cache, ttl time.Duration) *UserCache {
	return &UserCache{repo: repo, cache: c, ttl: ttl}
}

// GetByUsername 用户不存在时返回 (nil, nil)
func (u *UserCache) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	key := cache.User.Build(username)

	if u.cache != nil {
		var cached models.User
		err := u.cache.Get(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !types.IsCacheMiss(err) {
			log.Warnf("User cache read failed: %v", err)
		}
	}

	user, err := u.repo.WithContext(ctx).GetUserByUsername(username)
	if err != nil || user == nil {
		return user, err
	}

	if u.cache != nil {
		if err := u.cache.Set(ctx, key, user, u.ttl); err != nil {
			log.Warnf("User cache write failed: %v", err)
		}
	}
	return user, nil
}

// Invalidate 用户被修改或删除后调用
func (u *UserCache) Invalidate(ctx context.Context, usernames ...string) {
	if u.cache == nil {
		return
	}
	for _, name := range usernames {
		if err := u.cache.Delete(ctx, cache.User.Build(name)); err != nil {
			log.Warnf("User cache invalidate failed: %v", err)
		}
	}
}
