package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campushq/classroom-api/internal/middleware"
	"github.com/campushq/classroom-api/internal/service"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
	"github.com/campushq/classroom-api/pkg/response"
)

// EnrollmentHandler wires HTTP endpoints to the enrollment service.
type EnrollmentHandler struct {
	service *service.EnrollmentService
}

// NewEnrollmentHandler creates a new handler.
func NewEnrollmentHandler(svc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// ListAvailable godoc
// @Summary List joinable courses
// @Description Courses matching the student's batch and branch without a pending or accepted enrollment
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/available [get]
func (h *EnrollmentHandler) ListAvailable(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	courses, err := h.service.ListAvailable(c.Request.Context(), claims.SubjectID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, courses, nil)
}

// Request godoc
// @Summary Request enrollment
// @Description File an enrollment request for a course
// @Tags Enrollments
// @Produce json
// @Param code path string true "Course code"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/enrollments [post]
func (h *EnrollmentHandler) Request(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enrollment, err := h.service.Request(c.Request.Context(), claims.SubjectID, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, enrollment)
}

// ListPending godoc
// @Summary List pending enrollment requests
// @Description Pending requests for a course owned by the authenticated teacher
// @Tags Enrollments
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/enrollments/pending [get]
func (h *EnrollmentHandler) ListPending(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	pending, err := h.service.ListPending(c.Request.Context(), claims.SubjectID, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, pending, nil)
}

// Approve godoc
// @Summary Approve enrollment request
// @Description Move a pending request to enrolled
// @Tags Enrollments
// @Produce json
// @Param code path string true "Course code"
// @Param studentId path string true "Student id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/enrollments/{studentId}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enrollment, err := h.service.Approve(c.Request.Context(), claims.SubjectID, c.Param("code"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Reject godoc
// @Summary Reject enrollment request
// @Description Move a pending request to rejected; the student may request again
// @Tags Enrollments
// @Produce json
// @Param code path string true "Course code"
// @Param studentId path string true "Student id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/enrollments/{studentId}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enrollment, err := h.service.Reject(c.Request.Context(), claims.SubjectID, c.Param("code"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, enrollment, nil)
}
