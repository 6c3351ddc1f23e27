package core

import (
	"net/http"

	"github.com/anoixa/yolo-annotator/api/common"
	annotationsHandler "github.com/anoixa/yolo-annotator/api/handler/annotations"
	authHandler "github.com/anoixa/yolo-annotator/api/handler/auth"
	imagesHandler "github.com/anoixa/yolo-annotator/api/handler/images"
	projectsHandler "github.com/anoixa/yolo-annotator/api/handler/projects"
	usersHandler "github.com/anoixa/yolo-annotator/api/handler/users"
	"github.com/anoixa/yolo-annotator/api/middleware"
	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database/models"
	_ "github.com/anoixa/yolo-annotator/docs"
	"github.com/anoixa/yolo-annotator/internal/app"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RouterDependencies 路由注册依赖
type RouterDependencies struct {
	Container       *app.Container
	AuthRateLimiter *middleware.IPRateLimiter
	APIRateLimiter  *middleware.IPRateLimiter
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps *RouterDependencies) {
	registerBasicRoutes(router, deps)
	registerAPIRoutes(router, deps)
}

// registerBasicRoutes 注册基础路由
func registerBasicRoutes(router *gin.Engine, deps *RouterDependencies) {
	c := deps.Container
	healthHandler := NewHealthHandler(c.GetDatabaseProvider(), c.GetStorage())
	router.GET("/health", healthHandler.Handle)

	router.GET("/version", func(context *gin.Context) {
		common.RespondSuccess(context, gin.H{
			"version": config.Version,
			"commit":  config.CommitHash,
		})
	})

	router.GET("/metrics", func(context *gin.Context) {
		context.JSON(http.StatusOK, middleware.GetMetrics())
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// registerAPIRoutes 注册业务路由
func registerAPIRoutes(router *gin.Engine, deps *RouterDependencies) {
	c := deps.Container
	cfg := c.GetConfig()

	loginHandler := authHandler.NewHandler(c.Login, c.Users)
	userHandler := usersHandler.NewHandler(c.Users)
	projectHandler := projectsHandler.NewHandler(c.Projects)
	imageHandler := imagesHandler.NewHandler(c.Images, int64(cfg.UploadMaxBatchTotalMB)<<20)
	annotationHandler := annotationsHandler.NewHandler(c.Annotations)

	noStore := func(context *gin.Context) {
		context.Header("Cache-Control", "no-store")
		context.Next()
	}

	router.POST("/auth/login", noStore, deps.AuthRateLimiter.Middleware(), loginHandler.Login)

	authed := router.Group("/")
	authed.Use(noStore)
	authed.Use(deps.APIRateLimiter.Middleware())
	authed.Use(middleware.BearerAuth(c.JWT, c.UserCache))
	{
		authed.GET("/auth/me", loginHandler.Me)

		admin := authed.Group("/")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/auth/register", loginHandler.Register)

			admin.GET("/users", userHandler.List)
			admin.GET("/users/:id", userHandler.Get)
			admin.PATCH("/users/:id", userHandler.Update)
			admin.DELETE("/users/:id", userHandler.Delete)

			admin.POST("/projects/:id/assign/:user_id", projectHandler.Assign)
			admin.DELETE("/projects/:id/assign/:user_id", projectHandler.Unassign)
		}

		// Projects
		authed.POST("/projects", projectHandler.Create)
		authed.GET("/projects", projectHandler.List)
		authed.GET("/projects/:id", projectHandler.Get)
		authed.PATCH("/projects/:id", projectHandler.Update)
		authed.DELETE("/projects/:id", projectHandler.Delete)
		authed.POST("/projects/:id/images/upload", imageHandler.Upload)
		authed.GET("/projects/:id/images", imageHandler.List)

		// Images
		authed.GET("/images/:id", imageHandler.Get)
		authed.PATCH("/images/:id", imageHandler.Update)
		authed.DELETE("/images/:id", imageHandler.Delete)
		authed.GET("/images/:id/download", imageHandler.Download)

		// Annotations
		authed.POST("/images/:id/annotations", annotationHandler.Save)
		authed.GET("/images/:id/annotations", annotationHandler.List)
		authed.GET("/images/:id/annotations/download", annotationHandler.Download)
	}
}
