package middleware

import (
	"sync/atomic"
	"time"

	"github.com/anoixa/yolo-annotator/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	RequestIDHeader     = "X-Request-ID"
	ContextRequestIDKey = "request_id"
)

var (
	requestCount    atomic.Int64
	requestDuration atomic.Int64 // in milliseconds
	errorCount      atomic.Int64
)

// RequestID 复用客户端传入的请求 ID，否则生成新的
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Metrics 记录请求日志并累计基础指标
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime)
		requestCount.Add(1)
		requestDuration.Add(duration.Milliseconds())

		status := c.Writer.Status()
		if status >= 500 {
			errorCount.Add(1)
		}

		entry := log.WithFields(log.Fields{
			"method":     c.Request.Method,
			"path":       utils.SanitizeLogMessage(c.Request.URL.Path),
			"status":     status,
			"latency_ms": duration.Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": utils.SanitizeLogMessage(c.GetString(ContextRequestIDKey)),
		})
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request completed")
		}
	}
}

// GetMetrics 获取当前指标
func GetMetrics() map[string]interface{} {
	count := requestCount.Load()
	total := requestDuration.Load()
	avg := 0.0
	if count > 0 {
		avg = float64(total) / float64(count)
	}
	return map[string]interface{}{
		"request_count":       count,
		"request_duration_ms": total,
		"avg_duration_ms":     avg,
		"server_errors":       errorCount.Load(),
	}
}

// ResetMetrics 重置指标（可选，用于测试或定期重置）
func ResetMetrics() {
	requestCount.Store(0)
	requestDuration.Store(0)
	errorCount.Store(0)
}
