package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campushq/classroom-api/internal/middleware"
	"github.com/campushq/classroom-api/internal/service"
	appErrors "github.com/campushq/classroom-api/pkg/errors"
	"github.com/campushq/classroom-api/pkg/response"
)

// DoubtHandler wires HTTP endpoints to the doubt service.
type DoubtHandler struct {
	service *service.DoubtService
}

// NewDoubtHandler creates a new handler.
func NewDoubtHandler(svc *service.DoubtService) *DoubtHandler {
	return &DoubtHandler{service: svc}
}

// Ask godoc
// @Summary Ask question
// @Description File a question against a lecture, optionally referencing course resources
// @Tags Doubts
// @Accept json
// @Produce json
// @Param payload body service.AskQuestionRequest true "Question payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /doubts [post]
func (h *DoubtHandler) Ask(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AskQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid question payload"))
		return
	}

	question, err := h.service.Ask(c.Request.Context(), claims.SubjectID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, question)
}

// Answer godoc
// @Summary Answer question
// @Description Attach an answer; the first answer marks the question answered
// @Tags Doubts
// @Accept json
// @Produce json
// @Param id path string true "Question id"
// @Param payload body service.AnswerQuestionRequest true "Answer payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /doubts/{id}/answers [post]
func (h *DoubtHandler) Answer(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AnswerQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid answer payload"))
		return
	}

	answer, err := h.service.Answer(c.Request.Context(), subject, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, answer)
}

// Upvote godoc
// @Summary Upvote question
// @Description Record a vote; repeat votes leave the counter unchanged
// @Tags Doubts
// @Produce json
// @Param id path string true "Question id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /doubts/{id}/upvote [post]
func (h *DoubtHandler) Upvote(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	question, err := h.service.Upvote(c.Request.Context(), claims.SubjectID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, question, nil)
}

// MarkImportant godoc
// @Summary Flag question importance
// @Description Set or clear the importance flag on an owned course's question
// @Tags Doubts
// @Accept json
// @Produce json
// @Param id path string true "Question id"
// @Param payload body object true "Importance payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /doubts/{id}/important [post]
func (h *DoubtHandler) MarkImportant(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Important bool `json:"important"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid importance payload"))
		return
	}

	question, err := h.service.MarkImportant(c.Request.Context(), claims.SubjectID, c.Param("id"), payload.Important)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, question, nil)
}

// ListForCourse godoc
// @Summary List course questions
// @Description Course questions with answers, optionally filtered by answered state
// @Tags Doubts
// @Produce json
// @Param code path string true "Course code"
// @Param answered query bool false "Filter by answered state"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{code}/doubts [get]
func (h *DoubtHandler) ListForCourse(c *gin.Context) {
	subject, ok := middleware.CurrentSubject(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var answered *bool
	if raw := c.Query("answered"); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "answered must be a boolean"))
			return
		}
		answered = &value
	}

	questions, err := h.service.ListForCourse(c.Request.Context(), subject, c.Param("code"), answered)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, questions, nil)
}
