package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anoixa/yolo-annotator/api/common"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/internal/auth"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const (
	ContextUserKey     = "current_user"
	ContextUserIDKey   = "user_id"
	ContextUsernameKey = "username"
	ContextRoleKey     = "role"
)

// BearerAuth 校验 Authorization 头中的访问令牌并把当前用户放入上下文
// 头缺失或格式错误返回 403，令牌无效或用户不存在返回 401
func BearerAuth(jwtService *auth.JWTService, users *auth.UserCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			common.RespondErrorAbort(c, http.StatusForbidden, "Not authenticated")
			return
		}

		scheme, token, ok := strings.Cut(strings.TrimSpace(authHeader), " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			common.RespondErrorAbort(c, http.StatusForbidden, "Invalid authentication credentials")
			return
		}

		claims, err := jwtService.ExtractClaims(token)
		if err != nil {
			msg := "Could not validate credentials"
			if errors.Is(err, auth.ErrMissingSubject) {
				msg = "Token subject missing"
			}
			unauthorized(c, msg)
			return
		}

		user, err := users.GetByUsername(c.Request.Context(), claims.Subject)
		if err != nil {
			log.Errorf("Failed to load user for token: %v", err)
			common.RespondErrorAbort(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		if user == nil {
			unauthorized(c, "Could not validate credentials")
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUsernameKey, user.Username)
		c.Set(ContextRoleKey, user.Role)
		c.Next()
	}
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", "Bearer")
	common.RespondErrorAbort(c, http.StatusUnauthorized, msg)
}

// CurrentUser 返回 BearerAuth 放入的用户，未认证时为 nil
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
