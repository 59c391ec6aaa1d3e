package certificates

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/auth"
	"certificate-studio/certificate-backend/internal/render"
	"certificate-studio/certificate-backend/internal/templates"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler handles HTTP requests for certificate operations
type Handler struct {
	service        *Service
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewHandler(service *Service, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{service: service, maxUploadBytes: maxUploadBytes, logger: logger}
}

// RegisterRoutes registers certificate routes on an authenticated group.
// generation is applied to the two endpoints that render files.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, generation ...gin.HandlerFunc) {
	withGeneration := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, generation...), handler)
	}

	certs := router.Group("/certificates")
	{
		certs.POST("", withGeneration(h.generate)...)
		certs.POST("/bulk-generate", withGeneration(h.bulkGenerate)...)
		certs.GET("", h.list)
		certs.GET("/stats", h.stats)
		certs.GET("/export", h.export)
		certs.DELETE("", h.deleteAll)
		certs.GET("/:id", h.get)
		certs.DELETE("/:id", h.softDelete)
		certs.POST("/:id/archive", h.archive)
		certs.GET("/:id/download/:format", h.download)
	}
}

// generate handles POST /api/v1/certificates
func (h *Handler) generate(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cert, err := h.service.Generate(c.Request.Context(), owner, &req)
	if err != nil {
		if errors.Is(err, ErrGenerationFailed) && cert != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "certificate": cert})
			return
		}
		h.respondError(c, "Failed to generate certificate", err)
		return
	}
	c.JSON(http.StatusCreated, cert)
}

// bulkGenerate handles POST /api/v1/certificates/bulk-generate. It accepts
// JSON with a participants array, or a multipart form carrying templateId
// and an XLSX file whose first column holds the names.
func (h *Handler) bulkGenerate(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}

	var req BulkGenerateRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		defer f.Close()

		req.TemplateID = c.PostForm("templateId")
		req.ContainerDimensions = render.Size{
			Width:  formFloat(c, "containerWidth"),
			Height: formFloat(c, "containerHeight"),
		}
		if req.Participants, err = ParticipantsFromWorkbook(f); err != nil {
			h.respondError(c, "Failed to read participants", err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.BulkGenerate(c.Request.Context(), owner, &req)
	if err != nil && result == nil {
		h.respondError(c, "Failed to generate certificates", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// list handles GET /api/v1/certificates
func (h *Handler) list(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	filters, err := parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	resp, err := h.service.List(c.Request.Context(), owner, filters)
	if err != nil {
		h.respondError(c, "Failed to list certificates", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) stats(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), owner)
	if err != nil {
		h.respondError(c, "Failed to load certificate stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// export handles GET /api/v1/certificates/export and honours the list filters
func (h *Handler) export(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	filters, err := parseFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := h.service.Export(c.Request.Context(), owner, filters)
	if err != nil {
		h.respondError(c, "Failed to export certificates", err)
		return
	}
	name := fmt.Sprintf("certificates-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// deleteAll handles DELETE /api/v1/certificates
func (h *Handler) deleteAll(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	var req DeleteAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": ErrConfirmationMismatch.Error()})
		return
	}
	n, err := h.service.DeleteAll(c.Request.Context(), owner, req.Confirmation)
	if err != nil {
		h.respondError(c, "Failed to delete certificates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "all certificates deleted", "deletedCount": n})
}

func (h *Handler) get(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	cert, err := h.service.Get(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to get certificate", err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

func (h *Handler) softDelete(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(c.Request.Context(), owner, c.Param("id")); err != nil {
		h.respondError(c, "Failed to delete certificate", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "certificate deleted"})
}

func (h *Handler) archive(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	cert, err := h.service.Archive(c.Request.Context(), owner, c.Param("id"))
	if err != nil {
		h.respondError(c, "Failed to archive certificate", err)
		return
	}
	c.JSON(http.StatusOK, cert)
}

// download handles GET /api/v1/certificates/:id/download/:format
func (h *Handler) download(c *gin.Context) {
	owner, ok := h.owner(c)
	if !ok {
		return
	}
	d, err := h.service.Download(c.Request.Context(), owner, c.Param("id"), c.Param("format"))
	if err != nil {
		h.respondError(c, "Failed to download certificate", err)
		return
	}
	if d.RedirectURL != "" {
		c.Redirect(http.StatusTemporaryRedirect, d.RedirectURL)
		return
	}
	c.Header("Content-Type", d.ContentType)
	c.FileAttachment(d.Path, d.FileName)
}

func (h *Handler) owner(c *gin.Context) (primitive.ObjectID, bool) {
	owner, ok := auth.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return owner, ok
}

func (h *Handler) respondError(c *gin.Context, msg string, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, templates.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotDownloadable), errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrDuplicateCertificateID):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrConfirmationMismatch), IsValidationError(err):
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

func parseFilters(c *gin.Context) (ListFilters, error) {
	filters := ListFilters{
		Status:          Status(c.Query("status")),
		Search:          c.Query("search"),
		IncludeArchived: c.Query("includeArchived") == "true",
		Page:            getIntParam(c, "page", 1),
		PageSize:        getIntParam(c, "pageSize", defaultPageSize),
	}
	switch filters.Status {
	case "", StatusPending, StatusGenerated, StatusFailed, StatusArchived:
	default:
		return filters, fmt.Errorf("unknown status %q", filters.Status)
	}
	if raw := c.Query("templateId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return filters, ErrInvalidTemplateID
		}
		filters.TemplateID = &id
	}
	return filters, nil
}

func formFloat(c *gin.Context, key string) float64 {
	if v := c.PostForm(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
