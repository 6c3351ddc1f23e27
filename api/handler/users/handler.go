package users

import (
	"github.com/anoixa/yolo-annotator/api/common"
	"github.com/anoixa/yolo-annotator/api/dto"
	"github.com/anoixa/yolo-annotator/api/middleware"
	"github.com/anoixa/yolo-annotator/internal/users"
	"github.com/gin-gonic/gin"
)

// Handler 用户管理，路由组要求 admin
type Handler struct {
	svc *users.Service
}

func NewHandler(svc *users.Service) *Handler {
	return &Handler{svc: svc}
}

type listResponse struct {
	Users      []dto.UserResponse `json:"users"`
	Pagination dto.Pagination     `json:"pagination"`
}

// UpdateUserRequest 省略的字段保持不变
type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=1,max=50"`
	Password *string `json:"password" binding:"omitempty,min=1"`
	Role     *string `json:"role" binding:"omitempty,oneof=admin annotator"`
}

// List 用户列表
// @Summary      List users
// @Tags         users
// @Produce      json
// @Param        page   query     int  false  "Page number"  default(1)
// @Param        limit  query     int  false  "Page size, 0 for all"  default(50)
// @Success      200    {object}  common.Response{data=listResponse}
// @Failure      403    {object}  common.Response
// @Security     BearerAuth
// @Router       /users [get]
func (h *Handler) List(c *gin.Context) {
	page, limit := common.Pagination(c, 50, 500)

	list, total, err := h.svc.List(c.Request.Context(), page, limit)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, listResponse{
		Users:      dto.Users(list),
		Pagination: dto.Pagination{Page: page, Limit: limit, Total: total},
	})
}

// Get 用户详情
// @Summary      Get user
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  common.Response{data=dto.UserResponse}
// @Failure      404  {object}  common.Response
// @Security     BearerAuth
// @Router       /users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, dto.User(user))
}

// Update 修改用户
// @Summary      Update user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "User ID"
// @Param        body  body      UpdateUserRequest  true  "Fields to change"
// @Success      200   {object}  common.Response{data=dto.UserResponse}
// @Failure      400   {object}  common.Response  "Username already exists"
// @Failure      404   {object}  common.Response
// @Failure      422   {object}  common.Response
// @Security     BearerAuth
// @Router       /users/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBindError(c, err)
		return
	}

	user, err := h.svc.Update(c.Request.Context(), c.Param("id"), users.UpdateInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, dto.User(user))
}

// Delete 删除用户
// @Summary      Delete user
// @Description  Removes the user and their project assignments. Admins cannot delete themselves.
// @Tags         users
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  common.Response
// @Failure      400  {object}  common.Response  "Cannot delete yourself"
// @Failure      404  {object}  common.Response
// @Security     BearerAuth
// @Router       /users/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "User deleted successfully", nil)
}
