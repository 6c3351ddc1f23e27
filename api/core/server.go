package core

import (
	"net/http"
	"time"

	"github.com/anoixa/yolo-annotator/api/middleware"
	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/internal/app"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// downloadPaths 二进制下载不压缩
var downloadPaths = []string{`^/images/[^/]+/download$`, `^/swagger/`}

// NewRouter 创建 gin 引擎，返回的 cleanup 停止限流器的后台清理
func NewRouter(c *app.Container) (*gin.Engine, func()) {
	cfg := c.GetConfig()
	if !config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.ServerCORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs(downloadPaths)))

	_ = router.SetTrustedProxies(nil)

	// 上传文件在内存中缓冲的上限，超出部分落到临时文件
	router.MaxMultipartMemory = int64(cfg.UploadMaxSizeMB) << 20

	if cfg.ServerMaxInFlight > 0 {
		router.Use(middleware.NewConcurrencyLimiter(cfg.ServerMaxInFlight).Middleware())
	}

	authRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitAuthRPS, cfg.RateLimitAuthBurst, cfg.RateLimitExpireTime)
	apiRateLimiter := middleware.NewIPRateLimiter(cfg.RateLimitApiRPS, cfg.RateLimitApiBurst, cfg.RateLimitExpireTime)
	cleanup := func() {
		authRateLimiter.StopCleanup()
		apiRateLimiter.StopCleanup()
	}

	RegisterRoutes(router, &RouterDependencies{
		Container:       c,
		AuthRateLimiter: authRateLimiter,
		APIRateLimiter:  apiRateLimiter,
	})

	return router, cleanup
}

// StartServer 创建 http.Server
func StartServer(c *app.Container) (*http.Server, func()) {
	cfg := c.GetConfig()
	router, clean := NewRouter(c)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return srv, clean
}
