package bulk

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"certificate-studio/certificate-backend/internal/auth"
)

type Handler struct {
	packager *Packager
	logger   *zap.Logger
}

func NewHandler(packager *Packager, logger *zap.Logger) *Handler {
	return &Handler{packager: packager, logger: logger}
}

// RegisterRoutes registers bulk download routes on an authenticated group
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/certificates/bulk-download", h.create)
	router.GET("/certificates/bulk-download/:file", h.serve)
}

// create handles POST /api/v1/certificates/bulk-download
func (h *Handler) create(c *gin.Context) {
	owner, ok := auth.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.packager.Package(c.Request.Context(), owner, &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoCertificates), errors.Is(err, ErrTooManyFiles), errors.Is(err, ErrInvalidFormat):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, ErrNothingToArchive):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		default:
			h.logger.Error("Failed to build archive", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}

// serve handles GET /api/v1/certificates/bulk-download/:file
func (h *Handler) serve(c *gin.Context) {
	owner, ok := auth.AdminID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	name := c.Param("file")
	path, err := h.packager.Open(owner, name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Type", "application/zip")
	c.FileAttachment(path, name)
}
