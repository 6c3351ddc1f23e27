package core

import (
	"context"
	"net/http"
	"time"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/storage"
	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

const healthCheckTimeout = 5 * time.Second

// HealthHandler 检查数据库与存储
type HealthHandler struct {
	db      database.Provider
	storage storage.Provider
}

func NewHealthHandler(db database.Provider, store storage.Provider) *HealthHandler {
	return &HealthHandler{db: db, storage: store}
}

// Handle 任一检查失败返回 503
// @Summary      Health check
// @Tags         meta
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (h *HealthHandler) Handle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	checks := gin.H{
		"database": checkDatabaseHealth(h.db),
		"storage":  checkStorageHealth(ctx, h.storage),
	}

	status, httpStatus := "healthy", http.StatusOK
	for _, result := range checks {
		if result != "ok" {
			status, httpStatus = "unhealthy", http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":  status,
		"version": config.Version,
		"uptime":  time.Since(startTime).Round(time.Second).String(),
		"checks":  checks,
	})
}

func checkDatabaseHealth(provider database.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Ping(); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

func checkStorageHealth(ctx context.Context, provider storage.Provider) string {
	if provider == nil {
		return "not initialized"
	}
	if err := provider.Health(ctx); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
