package templates

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/auth"
	"certificate-studio/certificate-backend/internal/render"
)

// Handler handles HTTP requests for template operations
type Handler struct {
	service        *Service
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewHandler(service *Service, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{service: service, maxUploadBytes: maxUploadBytes, logger: logger}
}

// RegisterRoutes registers template routes on an authenticated group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	templates := router.Group("/templates")
	{
		templates.POST("", h.upload)
		templates.GET("", h.list)
		templates.GET("/fonts", h.fonts)
		templates.GET("/:id", h.get)
		templates.PUT("/:id", h.updateMetadata)
		templates.DELETE("/:id", h.deactivate)
		templates.PUT("/:id/placeholders", h.savePlaceholders)
		templates.GET("/:id/file", h.file)
		templates.POST("/:id/preview", h.preview)
	}
}

// upload handles POST /api/v1/templates (multipart)
func (h *Handler) upload(c *gin.Context) {
	owner, ok := auth.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	content, err := readFormFile(fh)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := &UploadRequest{
		Name:        c.PostForm("name"),
		Description: c.PostForm("description"),
		Tags:        c.PostFormArray("tags"),
		FileName:    fh.Filename,
		Content:     content,
		Width:       formInt(c, "width"),
		Height:      formInt(c, "height"),
	}
	if pfh, err := c.FormFile("preview"); err == nil {
		if req.Preview, err = readFormFile(pfh); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	t, err := h.service.Upload(c.Request.Context(), owner, req)
	if err != nil {
		h.respondError(c, "Failed to upload template", err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

// list handles GET /api/v1/templates
func (h *Handler) list(c *gin.Context) {
	owner, _ := auth.AdminID(c)
	filters := ListFilters{
		Search:          c.Query("search"),
		Tag:             c.Query("tag"),
		IncludeInactive: c.Query("includeInactive") == "true",
		Page:            getIntParam(c, "page", 1),
		PageSize:        getIntParam(c, "pageSize", 20),
	}

	resp, err := h.service.ListTemplates(c.Request.Context(), owner, filters)
	if err != nil {
		h.respondError(c, "Failed to list templates", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) fonts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"fonts": render.SupportedFonts()})
}

func (h *Handler) get(c *gin.Context) {
	owner, id, ok := h.ids(c)
	if !ok {
		return
	}
	t, err := h.service.GetTemplate(c.Request.Context(), owner, id)
	if err != nil {
		h.respondError(c, "Failed to get template", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) updateMetadata(c *gin.Context) {
	owner, id, ok := h.ids(c)
	if !ok {
		return
	}
	var req UpdateMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := h.service.UpdateMetadata(c.Request.Context(), owner, id, &req)
	if err != nil {
		h.respondError(c, "Failed to update template", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) deactivate(c *gin.Context) {
	owner, id, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), owner, id); err != nil {
		h.respondError(c, "Failed to deactivate template", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template deactivated"})
}

func (h *Handler) savePlaceholders(c *gin.Context) {
	owner, id, ok := h.ids(c)
	if !ok {
		return
	}
	var req SavePlaceholdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Placeholders == nil {
		req.Placeholders = []render.Placeholder{}
	}
	t, err := h.service.SavePlaceholders(c.Request.Context(), owner, id, req.Placeholders)
	if err != nil {
		h.respondError(c, "Failed to save placeholders", err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// file handles GET /api/v1/templates/:id/file[?variant=preview]
func (h *Handler) file(c *gin.Context) {
	owner, id, ok := h.ids(c)
	if !ok {
		return
	}
	name, mime, err := h.service.AssetName(c.Request.Context(), owner, id, c.Query("variant") == "preview")
	if err != nil {
		h.respondError(c, "Failed to load template file", err)
		return
	}
	path, err := h.service.FilePath(name)
	if err != nil {
		h.respondError(c, "Failed to resolve template file", err)
		return
	}
	c.Header("Content-Type", mime)
	c.File(path)
}

func (h *Handler) preview(c *gin.Context) {
	owner, id, ok := h.ids(c)
	if !ok {
		return
	}
	var req PreviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	data, err := h.service.Preview(c.Request.Context(), owner, id, &req)
	if err != nil {
		h.respondError(c, "Failed to render preview", err)
		return
	}
	c.Data(http.StatusOK, render.MIMEPNG, data)
}

func (h *Handler) ids(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	owner, ok := auth.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return owner, primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return owner, id, false
	}
	return owner, id, true
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case IsValidationError(err), errors.Is(err, ErrInactive):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error(msg, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formInt(c *gin.Context, key string) int {
	if v := c.PostForm(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

// getIntParam gets an integer query parameter with a default value
func getIntParam(c *gin.Context, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
