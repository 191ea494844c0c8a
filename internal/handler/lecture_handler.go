package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/classroom-api/internal/middleware"
	"github.com/campushq/classroom-api/internal/service"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
	"github.com/campushq/classroom-api/pkg/response"
)

// LectureHandler wires HTTP endpoints to the lecture service.
type LectureHandler struct {
	service *service.LectureService
}

// NewLectureHandler creates a new handler.
func NewLectureHandler(svc *service.LectureService) *LectureHandler {
	return &LectureHandler{service: svc}
}

// Create godoc
// @Summary Schedule lecture
// @Description Schedule a lecture on an owned course
// @Tags Lectures
// @Accept json
// @Produce json
// @Param payload body service.CreateLectureRequest true "Lecture payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lectures [post]
func (h *LectureHandler) Create(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateLectureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lecture payload"))
		return
	}

	lecture, err := h.service.Create(c.Request.Context(), claims.SubjectID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, lecture)
}

// Join godoc
// @Summary Join lecture
// @Description Record the authenticated student's participation; repeat joins are no-ops
// @Tags Lectures
// @Produce json
// @Param id path string true "Lecture id"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /lectures/{id}/join [post]
func (h *LectureHandler) Join(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	lecture, err := h.service.Join(c.Request.Context(), claims.SubjectID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lecture, nil)
}

// End godoc
// @Summary End lecture
// @Description Mark an owned lecture as ended; ending twice conflicts
// @Tags Lectures
// @Produce json
// @Param id path string true "Lecture id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /lectures/{id}/end [post]
func (h *LectureHandler) End(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	lecture, err := h.service.End(c.Request.Context(), claims.SubjectID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lecture, nil)
}

// ListLive godoc
// @Summary List live lectures
// @Description Lectures of the authenticated teacher currently inside their window and not ended
// @Tags Lectures
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /lectures/live [get]
func (h *LectureHandler) ListLive(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	lectures, err := h.service.ListLive(c.Request.Context(), claims.SubjectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lectures, nil)
}

// ListForCourse godoc
// @Summary List course lectures
// @Description Lectures of a course with status derived at read time
// @Tags Lectures
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/lectures [get]
func (h *LectureHandler) ListForCourse(c *gin.Context) {
	lectures, err := h.service.ListForCourse(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, lectures, nil)
}
