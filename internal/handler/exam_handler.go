package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/validator"
)

// ExamHandler handles exam management endpoints.
type ExamHandler struct {
	examService    *service.ExamService
	sessionService *service.ExamSessionService
	retakeService  *service.RetakeService
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(
	examService *service.ExamService,
	sessionService *service.ExamSessionService,
	retakeService *service.RetakeService,
) *ExamHandler {
	return &ExamHandler{
		examService:    examService,
		sessionService: sessionService,
		retakeService:  retakeService,
	}
}

// ListExams godoc
// GET /api/v1/admin/exams?domain=ml
// Lists exams of one domain, or of every domain the admin manages.
func (h *ExamHandler) ListExams(c *gin.Context) {
	var domain *model.Domain
	if raw := c.Query("domain"); raw != "" {
		d, err := model.ParseDomain(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidDomain)
			return
		}
		domain = &d
	}

	exams, err := h.examService.ListForAdmin(c.Request.Context(), middleware.GetPrincipal(c), domain)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// CreateExam godoc
// POST /api/v1/admin/exams
// Creates a new hidden exam.
func (h *ExamHandler) CreateExam(c *gin.Context) {
	var req model.CreateExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.Create(c.Request.Context(), middleware.GetPrincipal(c), req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"exam": exam})
}

// GetExam godoc
// GET /api/v1/admin/exams/:exam_id
func (h *ExamHandler) GetExam(c *gin.Context) {
	id, ok := paramInt64(c, "exam_id")
	if !ok {
		return
	}

	exam, err := h.examService.Get(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// SetVisibility godoc
// PATCH /api/v1/admin/exams/:exam_id/visibility
// Shows or hides an exam from students.
func (h *ExamHandler) SetVisibility(c *gin.Context) {
	id, ok := paramInt64(c, "exam_id")
	if !ok {
		return
	}

	var req model.SetVisibilityRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	exam, err := h.examService.SetVisibility(c.Request.Context(), middleware.GetPrincipal(c), id, *req.IsVisible)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}

// GetQuestionPaper godoc
// GET /api/v1/admin/exams/:exam_id/questions
// Returns the exam's question ids in display order.
func (h *ExamHandler) GetQuestionPaper(c *gin.Context) {
	id, ok := paramInt64(c, "exam_id")
	if !ok {
		return
	}

	ids, err := h.examService.QuestionPaper(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"question_ids": ids})
}

// SetQuestionPaper godoc
// PUT /api/v1/admin/exams/:exam_id/questions
// Replaces the exam's questions. Ids from another domain are skipped.
func (h *ExamHandler) SetQuestionPaper(c *gin.Context) {
	id, ok := paramInt64(c, "exam_id")
	if !ok {
		return
	}

	var req model.SetQuestionPaperRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	n, err := h.examService.SetQuestionPaper(c.Request.Context(), middleware.GetPrincipal(c), id, req.QuestionIDs)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"requested": len(req.QuestionIDs),
		"bound":     n,
	})
}

// GetExamResults godoc
// GET /api/v1/admin/exams/:exam_id/results
// Returns completed sessions, score distribution and retake grants of an exam.
func (h *ExamHandler) GetExamResults(c *gin.Context) {
	id, ok := paramInt64(c, "exam_id")
	if !ok {
		return
	}

	results, err := h.examService.Results(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, results)
}

// GetSessionResult godoc
// GET /api/v1/admin/sessions/:id
// Returns the graded review of one completed session in the admin's scope.
func (h *ExamHandler) GetSessionResult(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	result, err := h.sessionService.GetResults(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GrantRetake godoc
// PUT /api/v1/admin/exams/:exam_id/retakes
// Sets the remaining retake attempts of one student on an exam.
func (h *ExamHandler) GrantRetake(c *gin.Context) {
	id, ok := paramInt64(c, "exam_id")
	if !ok {
		return
	}

	var req model.GrantRetakeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	perm, err := h.retakeService.Grant(c.Request.Context(), middleware.GetPrincipal(c), id, req.UserID, *req.Attempts)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"retake": perm})
}

// ListRetakes godoc
// GET /api/v1/admin/exams/:exam_id/retakes
func (h *ExamHandler) ListRetakes(c *gin.Context) {
	id, ok := paramInt64(c, "exam_id")
	if !ok {
		return
	}

	perms, err := h.retakeService.List(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}
	if perms == nil {
		perms = []model.RetakePermission{}
	}

	response.Success(c, http.StatusOK, gin.H{"retakes": perms})
}
