package projects

import (
	"github.com/anoixa/yolo-annotator/api/common"
	"github.com/anoixa/yolo-annotator/api/dto"
	"github.com/anoixa/yolo-annotator/api/middleware"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/internal/projects"
	"github.com/gin-gonic/gin"
)

// Handler 项目处理器
type Handler struct {
	svc *projects.Service
}

func NewHandler(svc *projects.Service) *Handler {
	return &Handler{svc: svc}
}

// CreateProjectRequest class_names 省略时从 class_definitions 推导，都省略时为 ["object"]
type CreateProjectRequest struct {
	Name             string                   `json:"name" binding:"required,max=255"`
	ClassNames       []string                 `json:"class_names"`
	ClassDefinitions []models.ClassDefinition `json:"class_definitions"`
}

// UpdateProjectRequest 省略的字段保持不变
type UpdateProjectRequest struct {
	Name             *string                  `json:"name" binding:"omitempty,min=1,max=255"`
	ClassNames       []string                 `json:"class_names"`
	ClassDefinitions []models.ClassDefinition `json:"class_definitions"`
}

// Create 创建项目
// @Summary      Create project
// @Description  The creator is assigned to the project automatically
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        body  body      CreateProjectRequest  true  "Project"
// @Success      200   {object}  common.Response{data=dto.ProjectResponse}
// @Failure      422   {object}  common.Response
// @Security     BearerAuth
// @Router       /projects [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBindError(c, err)
		return
	}

	project, err := h.svc.Create(c.Request.Context(), middleware.CurrentUser(c), projects.CreateInput{
		Name:             req.Name,
		ClassNames:       req.ClassNames,
		ClassDefinitions: req.ClassDefinitions,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, dto.Project(project))
}

// List 当前用户可访问的项目
// @Summary      List projects
// @Description  Admins see every project, annotators see projects they created or are assigned to
// @Tags         projects
// @Produce      json
// @Success      200  {object}  common.Response{data=[]dto.ProjectResponse}
// @Security     BearerAuth
// @Router       /projects [get]
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, dto.Projects(list))
}

// Get 项目详情
// @Summary      Get project
// @Tags         projects
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  common.Response{data=dto.ProjectResponse}
// @Failure      403  {object}  common.Response  "Access denied"
// @Failure      404  {object}  common.Response  "Project not found"
// @Security     BearerAuth
// @Router       /projects/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	project, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, dto.Project(project))
}

// Update 修改项目
// @Summary      Update project
// @Description  Creator or admin only
// @Tags         projects
// @Accept       json
// @Produce      json
// @Param        id    path      string                true  "Project ID"
// @Param        body  body      UpdateProjectRequest  true  "Fields to change"
// @Success      200   {object}  common.Response{data=dto.ProjectResponse}
// @Failure      403   {object}  common.Response
// @Failure      404   {object}  common.Response
// @Security     BearerAuth
// @Router       /projects/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBindError(c, err)
		return
	}

	project, err := h.svc.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), projects.UpdateInput{
		Name:             req.Name,
		ClassNames:       req.ClassNames,
		ClassDefinitions: req.ClassDefinitions,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, dto.Project(project))
}

// Delete 删除项目及其全部图片与标注
// @Summary      Delete project
// @Description  Creator or admin only. Removes images, annotations, assignments and stored files.
// @Tags         projects
// @Produce      json
// @Param        id   path      string  true  "Project ID"
// @Success      200  {object}  common.Response
// @Failure      403  {object}  common.Response
// @Failure      404  {object}  common.Response
// @Security     BearerAuth
// @Router       /projects/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Project deleted successfully", nil)
}

// Assign 分配用户
// @Summary      Assign user to project
// @Description  Admin only. Assigning an already assigned user succeeds without duplication.
// @Tags         projects
// @Produce      json
// @Param        id       path      string  true  "Project ID"
// @Param        user_id  path      string  true  "User ID"
// @Success      200      {object}  common.Response{data=projects.AssignmentResult}
// @Failure      404      {object}  common.Response
// @Security     BearerAuth
// @Router       /projects/{id}/assign/{user_id} [post]
func (h *Handler) Assign(c *gin.Context) {
	res, err := h.svc.Assign(c.Request.Context(), c.Param("id"), c.Param("user_id"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, res.Message, res)
}

// Unassign 取消分配
// @Summary      Unassign user from project
// @Description  Admin only. The project creator cannot be unassigned.
// @Tags         projects
// @Produce      json
// @Param        id       path      string  true  "Project ID"
// @Param        user_id  path      string  true  "User ID"
// @Success      200      {object}  common.Response{data=projects.AssignmentResult}
// @Failure      400      {object}  common.Response  "Cannot unassign project creator"
// @Failure      404      {object}  common.Response
// @Security     BearerAuth
// @Router       /projects/{id}/assign/{user_id} [delete]
func (h *Handler) Unassign(c *gin.Context) {
	res, err := h.svc.Unassign(c.Request.Context(), c.Param("id"), c.Param("user_id"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, res.Message, res)
}
