package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/campushq/classroom-api/internal/middleware"
	"github.com/campushq/classroom-api/internal/models"
	"github.com/campushq/classroom-api/internal/service"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
	"github.com/campushq/classroom-api/pkg/response"
)

// ExportHandler wires HTTP endpoints to the export service.
type ExportHandler struct {
	service *service.ExportService
}

// NewExportHandler creates a new handler.
func NewExportHandler(svc *service.ExportService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// EnqueueRoster godoc
// @Summary Export course roster
// @Description Queue a CSV export of the course's enrolled students
// @Tags Exports
// @Produce json
// @Param code path string true "Course code"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/exports/roster [post]
func (h *ExportHandler) EnqueueRoster(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, err := h.service.EnqueueRoster(c.Request.Context(), claims.SubjectID, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, job, nil)
}

// EnqueueDoubtDigest godoc
// @Summary Export doubt digest
// @Description Queue a PDF digest of the course's questions, optionally narrowed to one lecture
// @Tags Exports
// @Produce json
// @Param code path string true "Course code"
// @Param lectureId query string false "Lecture id"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/exports/doubt-digest [post]
func (h *ExportHandler) EnqueueDoubtDigest(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var lectureID *string
	if raw := c.Query("lectureId"); raw != "" {
		lectureID = &raw
	}

	job, err := h.service.EnqueueDoubtDigest(c.Request.Context(), claims.SubjectID, c.Param("code"), lectureID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, job, nil)
}

// Get godoc
// @Summary Get export job
// @Description Fetch an export job's status and result link
// @Tags Exports
// @Produce json
// @Param id path string true "Export job id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /exports/{id} [get]
func (h *ExportHandler) Get(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, err := h.service.Get(c.Request.Context(), claims.SubjectID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, job, nil)
}

// List godoc
// @Summary List export jobs
// @Description Export jobs created by the authenticated teacher
// @Tags Exports
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /exports [get]
func (h *ExportHandler) List(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	listed, err := h.service.List(c.Request.Context(), claims.SubjectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, listed, nil)
}

// Download godoc
// @Summary Download export artifact
// @Description Stream a finished artifact referenced by a signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, job, err := h.service.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	filename := filepath.Base(file.Name())
	contentType := "application/octet-stream"
	if job.Format == models.ExportFormatCSV {
		contentType = "text/csv"
	} else if job.Format == models.ExportFormatPDF {
		contentType = "application/pdf"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		_ = c.Error(err)
	}
}
