package auth

import (
	"net/http"

	"github.com/anoixa/yolo-annotator/api/common"
	"github.com/anoixa/yolo-annotator/api/dto"
	"github.com/anoixa/yolo-annotator/api/middleware"
	"github.com/anoixa/yolo-annotator/internal/auth"
	"github.com/anoixa/yolo-annotator/internal/users"
	"github.com/gin-gonic/gin"
)

// Handler 登录与当前用户
type Handler struct {
	loginService *auth.LoginService
	users        *users.Service
}

func NewHandler(loginService *auth.LoginService, userService *users.Service) *Handler {
	return &Handler{loginService: loginService, users: userService}
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	AccessToken       string           `json:"access_token"`
	TokenType         string           `json:"token_type"`
	AccessTokenExpiry int64            `json:"access_token_expiry"`
	User              dto.UserResponse `json:"user"`
}

// RegisterRequest 管理员创建用户
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role" binding:"required,oneof=admin annotator"`
}

// Login 用户登录
// @Summary      Login
// @Description  Authenticate with username and password and receive a bearer token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest     true  "Credentials"
// @Success      200   {object}  common.Response{data=loginResponse}
// @Failure      401   {object}  common.Response  "Incorrect username or password"
// @Failure      422   {object}  common.Response  "Invalid request body"
// @Failure      429   {object}  common.Response  "Too many requests"
// @Router       /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBindError(c, err)
		return
	}

	result, err := h.loginService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if common.StatusFor(err) == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccessMessage(c, "Login successful", loginResponse{
		AccessToken:       result.AccessToken,
		TokenType:         "bearer",
		AccessTokenExpiry: result.AccessTokenExpiry.Unix(),
		User:              dto.User(result.User),
	})
}

// Me 当前登录用户
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Success      200  {object}  common.Response{data=dto.UserResponse}
// @Failure      401  {object}  common.Response
// @Failure      403  {object}  common.Response
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	common.RespondSuccess(c, dto.User(middleware.CurrentUser(c)))
}

// Register 创建用户
// @Summary      Register user
// @Description  Admin only
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      RegisterRequest  true  "New user"
// @Success      200   {object}  common.Response{data=dto.UserResponse}
// @Failure      400   {object}  common.Response  "Username already exists"
// @Failure      403   {object}  common.Response  "Admin access required"
// @Failure      422   {object}  common.Response
// @Security     BearerAuth
// @Router       /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBindError(c, err)
		return
	}

	user, err := h.users.Create(c.Request.Context(), users.CreateInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "User created", dto.User(user))
}
