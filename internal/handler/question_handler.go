package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/validator"
)

// QuestionHandler handles question bank endpoints.
type QuestionHandler struct {
	questionService *service.QuestionService
}

// NewQuestionHandler creates a new QuestionHandler.
func NewQuestionHandler(questionService *service.QuestionService) *QuestionHandler {
	return &QuestionHandler{questionService: questionService}
}

// ListQuestions godoc
// GET /api/v1/admin/domains/:domain/questions
// Lists all questions of a domain, answer keys included.
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	questions, err := h.questionService.List(c.Request.Context(), middleware.GetPrincipal(c), middleware.GetDomain(c))
	if err != nil {
		failService(c, err)
		return
	}
	if questions == nil {
		questions = []model.Question{}
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AddQuestion godoc
// POST /api/v1/admin/domains/:domain/questions
// Adds a question to a domain's bank.
func (h *QuestionHandler) AddQuestion(c *gin.Context) {
	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.questionService.Create(c.Request.Context(), middleware.GetPrincipal(c), middleware.GetDomain(c), req)
	if err != nil {
		failQuestion(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"question": q})
}

// GetQuestion godoc
// GET /api/v1/admin/questions/:question_id
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
	id, ok := paramInt64(c, "question_id")
	if !ok {
		return
	}

	q, err := h.questionService.Get(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// UpdateQuestion godoc
// PUT /api/v1/admin/questions/:question_id
// Replaces a question's content. The domain never changes.
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id, ok := paramInt64(c, "question_id")
	if !ok {
		return
	}

	var req model.QuestionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	q, err := h.questionService.Update(c.Request.Context(), middleware.GetPrincipal(c), id, req)
	if err != nil {
		failQuestion(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question": q})
}

// DeleteQuestion godoc
// DELETE /api/v1/admin/questions/:question_id
// Deletes a question that no student has answered yet.
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
	id, ok := paramInt64(c, "question_id")
	if !ok {
		return
	}

	if err := h.questionService.Delete(c.Request.Context(), middleware.GetPrincipal(c), id); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// failQuestion reports why a question was rejected as a field error.
func failQuestion(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidQuestion) {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidQuestion, map[string]string{
			"question": err.Error(),
		})
		return
	}
	failService(c, err)
}
