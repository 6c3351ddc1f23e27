package images

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/anoixa/yolo-annotator/api/common"
	"github.com/anoixa/yolo-annotator/api/dto"
	"github.com/anoixa/yolo-annotator/api/middleware"
	"github.com/anoixa/yolo-annotator/internal/images"
	"github.com/anoixa/yolo-annotator/storage"
	"github.com/gin-gonic/gin"
)

// Handler 图片处理器
type Handler struct {
	svc           *images.Service
	maxBatchBytes int64
}

// NewHandler maxBatchBytes 为单次上传的总字节上限，<= 0 表示不限制
func NewHandler(svc *images.Service, maxBatchBytes int64) *Handler {
	return &Handler{svc: svc, maxBatchBytes: maxBatchBytes}
}

type uploadResponse struct {
	UploadedImages []dto.ImageResponse `json:"uploaded_images"`
	FailedFiles    []images.FailedFile `json:"failed_files"`
}

type listResponse struct {
	Images     []dto.ImageResponse `json:"images"`
	Pagination dto.Pagination      `json:"pagination"`
}

// UpdateImageRequest 省略的字段保持不变
type UpdateImageRequest struct {
	Status *string `json:"status" binding:"omitempty,oneof=pending in-progress completed"`
	Width  *int    `json:"width" binding:"omitempty"`
	Height *int    `json:"height" binding:"omitempty"`
}

// Upload 批量上传图片
// @Summary      Upload images
// @Description  Files that are not images, exceed the size limit or cannot be stored are reported in failed_files. A database failure aborts the whole batch and removes the stored files.
// @Tags         images
// @Accept       multipart/form-data
// @Produce      json
// @Param        id     path      string  true  "Project ID"
// @Param        files  formData  file    true  "Image files"
// @Success      200    {object}  common.Response{data=uploadResponse}
// @Failure      403    {object}  common.Response
// @Failure      404    {object}  common.Response
// @Failure      413    {object}  common.Response
// @Failure      422    {object}  common.Response
// @Security     BearerAuth
// @Router       /projects/{id}/images/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		common.RespondError(c, http.StatusUnprocessableEntity, "Invalid form data")
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		common.RespondError(c, http.StatusUnprocessableEntity, "At least one file is required under the 'files' key")
		return
	}

	var totalSize int64
	for _, f := range headers {
		totalSize += f.Size
	}
	if h.maxBatchBytes > 0 && totalSize > h.maxBatchBytes {
		common.RespondError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Total size of all files (%.2f MB) exceeds maximum allowed (%d MB)", float64(totalSize)/1024/1024, h.maxBatchBytes>>20))
		return
	}

	files := make([]images.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}

	result, err := h.svc.Upload(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), files)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	uploaded := make([]dto.ImageResponse, 0, len(result.Uploaded))
	for _, img := range result.Uploaded {
		uploaded = append(uploaded, dto.Image(img, 0))
	}
	common.RespondSuccess(c, uploadResponse{UploadedImages: uploaded, FailedFiles: result.Failed})
}

func uploadFile(fh *multipart.FileHeader) images.UploadFile {
	return images.UploadFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// List 项目图片列表
// @Summary      List project images
// @Tags         images
// @Produce      json
// @Param        id     path      string  true   "Project ID"
// @Param        page   query     int     false  "Page number"  default(1)
// @Param        limit  query     int     false  "Page size, 0 for all"  default(0)
// @Success      200    {object}  common.Response{data=listResponse}
// @Failure      403    {object}  common.Response
// @Failure      404    {object}  common.Response
// @Security     BearerAuth
// @Router       /projects/{id}/images [get]
func (h *Handler) List(c *gin.Context) {
	user := middleware.CurrentUser(c)
	projectID := c.Param("id")
	page, limit := common.Pagination(c, 0, 1000)

	list, err := h.svc.List(c.Request.Context(), user, projectID, page, limit)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	total, err := h.svc.Count(c.Request.Context(), user, projectID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	common.RespondSuccess(c, listResponse{
		Images:     dto.ImageSummaries(list),
		Pagination: dto.Pagination{Page: page, Limit: limit, Total: total},
	})
}

// Get 图片详情
// @Summary      Get image
// @Tags         images
// @Produce      json
// @Param        id   path      string  true  "Image ID"
// @Success      200  {object}  common.Response{data=dto.ImageResponse}
// @Failure      403  {object}  common.Response  "Access denied to this image"
// @Failure      404  {object}  common.Response  "Image not found"
// @Security     BearerAuth
// @Router       /images/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	summary, err := h.svc.Get(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, dto.Image(summary.Image, summary.AnnotationCount))
}

// Download 下载原始文件
// @Summary      Download image
// @Description  Streams the stored bytes with the original filename and declared MIME type
// @Tags         images
// @Produce      octet-stream
// @Param        id   path      string  true  "Image ID"
// @Success      200  {file}    binary
// @Failure      403  {object}  common.Response
// @Failure      404  {object}  common.Response  "Image file not found on disk"
// @Security     BearerAuth
// @Router       /images/{id}/download [get]
func (h *Handler) Download(c *gin.Context) {
	img, r, err := h.svc.Download(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	defer storage.Close(r)

	if img.Type != "" {
		c.Header("Content-Type", img.Type)
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": img.Name}))
	http.ServeContent(c.Writer, c.Request, img.Name, img.UploadDate, r)
}

// Update 修改图片状态或尺寸
// @Summary      Update image
// @Tags         images
// @Accept       json
// @Produce      json
// @Param        id    path      string              true  "Image ID"
// @Param        body  body      UpdateImageRequest  true  "Fields to change"
// @Success      200   {object}  common.Response{data=dto.ImageResponse}
// @Failure      403   {object}  common.Response
// @Failure      404   {object}  common.Response
// @Failure      422   {object}  common.Response
// @Security     BearerAuth
// @Router       /images/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBindError(c, err)
		return
	}

	summary, err := h.svc.Update(c.Request.Context(), middleware.CurrentUser(c), c.Param("id"), images.UpdateInput{
		Status: req.Status,
		Width:  req.Width,
		Height: req.Height,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, dto.Image(summary.Image, summary.AnnotationCount))
}

// Delete 删除图片
// @Summary      Delete image
// @Description  Removes the stored file (a missing file is tolerated), the record and its annotations
// @Tags         images
// @Produce      json
// @Param        id   path      string  true  "Image ID"
// @Success      200  {object}  common.Response
// @Failure      403  {object}  common.Response
// @Failure      404  {object}  common.Response
// @Security     BearerAuth
// @Router       /images/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUser(c), c.Param("id")); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccessMessage(c, "Image deleted successfully", nil)
}
