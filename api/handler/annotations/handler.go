package annotations

import (
	"mime"
	"net/http"

	"github.com/anoixa/yolo-annotator/api/common"
	"github.com/anoixa/yolo-annotator/api/middleware"
	"github.com/anoixa/yolo-annotator/internal/annotations"
	"github.com/gin-gonic/gin"
)

// Handler 标注处理器
type Handler struct {
	svc *annotations.Service
}

func NewHandler(svc *annotations.Service) *Handler {
	return &Handler{svc: svc}
}

// BoxRequest 左上角像素坐标框
// 各字段只要求存在，取值不做范围限制，越界或负尺寸的框原样导出
type BoxRequest struct {
	ClassID   *int     `json:"class_id" binding:"required"`
	ClassName *string  `json:"class_name" binding:"required"`
	Color     *string  `json:"color" binding:"required"`
	X         *float64 `json:"x" binding:"required"`
	Y         *float64 `json:"y" binding:"required"`
	Width     *float64 `json:"width" binding:"required"`
	Height    *float64 `json:"height" binding:"required"`
}

// Save 整体替换图片标注
// @Summary      Save annotations
// @Description  Replaces the image's annotation set in one transaction. A non-empty set marks the image completed.
// @Tags         annotations
// @Accept       json
// @Produce      json
// @Param        id    path      string        true  "Image ID"
// @Param        body  body      []BoxRequest  true  "Boxes"
// @Success      200   {object}  common.Response{data=[]models.Annotation}
// @Failure      403   {object}  common.Response
// @Failure      404   {object}  common.Response
// @Failure      422   {object}  common.Response
// @Security     BearerAuth
// @Router       /images/{id}/annotations [post]
func (h *Handler) Save(c *gin.Context) {
	var req []BoxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBindError(c, err)
		return
	}

	boxes := make([]annotations.BoxInput, 0, len(req))
	for _, b := range req {
		boxes = append(boxes, annotations.BoxInput{
			ClassID:   *b.ClassID,
			ClassName: *b.ClassName,
			Color:     *b.Color,
			X:         *b.X,
			Y:         *b.Y,
			Width:     *b.Width,
			Height:    *b.Height,
		})
	}

	saved, err := h.svc.Save(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), boxes)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, saved)
}

// List 图片标注
// @Summary      List annotations
// @Tags         annotations
// @Produce      json
// @Param        id   path      string  true  "Image ID"
// @Success      200  {object}  common.Response{data=[]models.Annotation}
// @Failure      403  {object}  common.Response
// @Failure      404  {object}  common.Response
// @Security     BearerAuth
// @Router       /images/{id}/annotations [get]
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, list)
}

// Download 导出 YOLO 标签文件
// @Summary      Download YOLO labels
// @Description  One "<class_id> <cx> <cy> <w> <h>" line per box, named after the image
// @Tags         annotations
// @Produce      plain
// @Param        id   path      string  true  "Image ID"
// @Success      200  {string}  string
// @Failure      403  {object}  common.Response
// @Failure      404  {object}  common.Response  "No annotations found for this image"
// @Security     BearerAuth
// @Router       /images/{id}/annotations/download [get]
func (h *Handler) Download(c *gin.Context) {
	filename, content, err := h.svc.Export(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(content))
}
