package app

import (
	"fmt"

	"github.com/anoixa/yolo-annotator/cache"
	"github.com/anoixa/yolo-annotator/cache/types"
	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/repo/accounts"
	annotationsrepo "github.com/anoixa/yolo-annotator/database/repo/annotations"
	imagesrepo "github.com/anoixa/yolo-annotator/database/repo/images"
	projectsrepo "github.com/anoixa/yolo-annotator/database/repo/projects"
	"github.com/anoixa/yolo-annotator/internal/annotations"
	"github.com/anoixa/yolo-annotator/internal/auth"
	"github.com/anoixa/yolo-annotator/internal/images"
	"github.com/anoixa/yolo-annotator/internal/projects"
	"github.com/anoixa/yolo-annotator/internal/users"
	"github.com/anoixa/yolo-annotator/storage"
	log "github.com/sirupsen/logrus"
)

// Container 依赖注入容器 - 管理所有服务的生命周期
type Container struct {
	config  *config.Config
	db      database.Provider
	storage storage.Provider
	cache   types.Cache

	AccountsRepo    *accounts.Repository
	ProjectsRepo    *projectsrepo.Repository
	ImagesRepo      *imagesrepo.Repository
	AnnotationsRepo *annotationsrepo.Repository

	JWT         *auth.JWTService
	Login       *auth.LoginService
	UserCache   *auth.UserCache
	Users       *users.Service
	Projects    *projects.Service
	Images      *images.Service
	Annotations *annotations.Service
}

// NewContainer 按配置打开数据库、存储和缓存
func NewContainer(cfg *config.Config) (*Container, error) {
	db, err := database.NewGormProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	store, err := storage.NewProvider(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	c, err := cache.New(cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	return Build(cfg, db, store, c)
}

// Build 用已创建的底层组件组装仓库与服务，cache 可以为 nil
func Build(cfg *config.Config, db database.Provider, store storage.Provider, c types.Cache) (*Container, error) {
	jwtService, err := auth.NewJWTService(cfg.JWTSecret, cfg.JWTAccessTokenTTL)
	if err != nil {
		return nil, err
	}

	ct := &Container{
		config:  cfg,
		db:      db,
		storage: store,
		cache:   c,
		JWT:     jwtService,
	}
	ct.initRepositories()
	ct.initServices()

	cacheName := "none"
	if c != nil {
		cacheName = c.Name()
	}
	log.Infof("Container ready (database=%s, storage=%s, cache=%s)", db.Name(), store.Name(), cacheName)
	return ct, nil
}

// initRepositories 初始化所有仓库
func (c *Container) initRepositories() {
	c.AccountsRepo = accounts.NewRepository(c.db)
	c.ProjectsRepo = projectsrepo.NewRepository(c.db)
	c.ImagesRepo = imagesrepo.NewRepository(c.db)
	c.AnnotationsRepo = annotationsrepo.NewRepository(c.db)
}

func (c *Container) initServices() {
	c.Login = auth.NewLoginService(c.AccountsRepo, c.JWT)
	c.UserCache = auth.NewUserCache(c.AccountsRepo, c.cache, c.config.CacheUserTTL)
	c.Users = users.NewService(c.AccountsRepo, c.UserCache)
	c.Projects = projects.NewService(c.ProjectsRepo, c.AccountsRepo, c.storage)
	c.Images = images.NewService(c.ImagesRepo, c.Projects, c.storage, c.config.UploadMaxSizeBytes())
	c.Annotations = annotations.NewService(c.AnnotationsRepo, c.Images)
}

// Migrate 迁移表结构并确保默认管理员存在
func (c *Container) Migrate() error {
	if err := c.db.AutoMigrate(); err != nil {
		return err
	}

	res, err := c.AccountsRepo.CreateDefaultAdminUser(c.config.DefaultAdminUsername, c.config.DefaultAdminPassword)
	if err != nil {
		return fmt.Errorf("failed to seed default admin: %w", err)
	}
	if res.Created && res.Generated {
		log.Warnf("Created default admin %q with generated password: %s", res.Username, res.Password)
	} else if res.Created {
		log.Infof("Created default admin %q", res.Username)
	}
	return nil
}

// GetConfig 获取配置
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetDatabaseProvider 获取数据库提供者
func (c *Container) GetDatabaseProvider() database.Provider {
	return c.db
}

// GetStorage 获取存储提供者
func (c *Container) GetStorage() storage.Provider {
	return c.storage
}

// Close 关闭所有服务
func (c *Container) Close() error {
	if c.cache != nil {
		if err := c.cache.Close(); err != nil {
			log.Warnf("Error closing cache: %v", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			return fmt.Errorf("error closing database: %w", err)
		}
	}
	return nil
}
