package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campushq/classroom-api/internal/middleware"
	"github.com/campushq/classroom-api/internal/models"
	"github.com/campushq/classroom-api/internal/service"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
	"github.com/campushq/classroom-api/pkg/response"
)

// ResourceHandler wires HTTP endpoints to the resource service.
type ResourceHandler struct {
	service *service.ResourceService
}

// NewResourceHandler creates a new handler.
func NewResourceHandler(svc *service.ResourceService) *ResourceHandler {
	return &ResourceHandler{service: svc}
}

// Add godoc
// @Summary Add course resource
// @Description Add a resource to a course as its owning teacher or a rostered TA
// @Tags Resources
// @Accept json
// @Produce json
// @Param code path string true "Course code"
// @Param payload body service.AddResourceRequest true "Resource payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/resources [post]
func (h *ResourceHandler) Add(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AddResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
		return
	}

	resource, err := h.service.Add(c.Request.Context(), subject, c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, resource)
}

// ListForCourse godoc
// @Summary List course resources
// @Description Active resources of a course grouped by topic
// @Tags Resources
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/resources [get]
func (h *ResourceHandler) ListForCourse(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	groups, err := h.service.GetCourseResources(c.Request.Context(), subject, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, groups, nil)
}

// ListForLecture godoc
// @Summary List lecture resources
// @Description Active resources associated with a lecture
// @Tags Resources
// @Produce json
// @Param id path string true "Lecture id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /lectures/{id}/resources [get]
func (h *ResourceHandler) ListForLecture(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resources, err := h.service.GetLectureResources(c.Request.Context(), subject, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resources, nil)
}

// Update godoc
// @Summary Update resource
// @Description Rewrite a resource's mutable fields as its contributor or the owning teacher
// @Tags Resources
// @Accept json
// @Produce json
// @Param id path string true "Resource id"
// @Param payload body service.UpdateResourceRequest true "Resource payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /resources/{id} [put]
func (h *ResourceHandler) Update(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid resource payload"))
		return
	}

	resource, err := h.service.Update(c.Request.Context(), subject, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resource, nil)
}

// Delete godoc
// @Summary Delete resource
// @Description Soft-delete a resource; repeat deletes are no-ops
// @Tags Resources
// @Produce json
// @Param id path string true "Resource id"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /resources/{id} [delete]
func (h *ResourceHandler) Delete(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), subject, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Search godoc
// @Summary Search course resources
// @Description Conjunctive filtering over the course's active resources
// @Tags Resources
// @Produce json
// @Param code path string true "Course code"
// @Param q query string false "Substring over title, description and content"
// @Param kind query string false "Exact kind"
// @Param topic query string false "Exact topic"
// @Param tags query string false "Comma separated tags, any overlap matches"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/resources/search [get]
func (h *ResourceHandler) Search(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ResourceFilter{
		Query: c.Query("q"),
		Kind:  models.ResourceKind(c.Query("kind")),
		Topic: c.Query("topic"),
	}
	if raw := c.Query("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(tag); trimmed != "" {
				filter.Tags = append(filter.Tags, trimmed)
			}
		}
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown resource kind"))
		return
	}

	resources, err := h.service.Search(c.Request.Context(), subject, c.Param("code"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, resources, nil)
}
