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

// StudentPortalHandler handles student-facing endpoints (exam list, sessions, results).
type StudentPortalHandler struct {
	sessionService *service.ExamSessionService
	examService    *service.ExamService
}

// NewStudentPortalHandler creates a new StudentPortalHandler.
func NewStudentPortalHandler(
	sessionService *service.ExamSessionService,
	examService *service.ExamService,
) *StudentPortalHandler {
	return &StudentPortalHandler{
		sessionService: sessionService,
		examService:    examService,
	}
}

// ListExams godoc
// GET /api/v1/student/exams?domain=web_dev
// Returns visible exams with the caller's attempt and retake state.
func (h *StudentPortalHandler) ListExams(c *gin.Context) {
	var domain *model.Domain
	if raw := c.Query("domain"); raw != "" {
		d, err := model.ParseDomain(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidDomain)
			return
		}
		domain = &d
	}

	exams, err := h.examService.ListForStudent(c.Request.Context(), middleware.GetPrincipal(c), domain)
	if err != nil {
		failService(c, err)
		return
	}
	if exams == nil {
		exams = []model.StudentExam{}
	}

	response.Success(c, http.StatusOK, gin.H{"exams": exams})
}

// GetActiveSession godoc
// GET /api/v1/student/active-session
// Returns the caller's unfinished session, or null.
func (h *StudentPortalHandler) GetActiveSession(c *gin.Context) {
	sess, err := h.sessionService.ActiveSession(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		if status, _ := resolveError(err); status == http.StatusNotFound {
			response.Success(c, http.StatusOK, gin.H{"session": nil})
			return
		}
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"session": sess})
}

// StartSession godoc
// POST /api/v1/student/sessions
// Starts a session for {exam_id} or an ad-hoc {domain} quiz, or resumes
// the caller's unopened session for the same target.
func (h *StudentPortalHandler) StartSession(c *gin.Context) {
	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	target, ok := req.Target()
	if !ok {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"exam_id": "exam_id or domain is required",
		})
		return
	}

	res, err := h.sessionService.StartOrResume(c.Request.Context(), middleware.GetPrincipal(c), target)
	if err != nil {
		failService(c, err)
		return
	}

	status := http.StatusCreated
	if res.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, res)
}

// GetSession godoc
// GET /api/v1/student/sessions/:id
// Opens the session: questions in snapshot order, drafts and time left.
// An expired session is finalized and returned without questions. A completed
// one answers 409 with the results location.
func (h *StudentPortalHandler) GetSession(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.sessionService.GetView(c.Request.Context(), middleware.GetPrincipal(c), id)
	if errors.Is(err, service.ErrAlreadyCompleted) {
		response.FailWithData(c, http.StatusConflict, response.ErrExamCompleted, gin.H{
			"session_id":  id,
			"results_url": "/api/v1/student/sessions/" + id.String() + "/results",
		})
		return
	}
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// SubmitSession godoc
// POST /api/v1/student/sessions/:id/submit
// Finalizes the session with the given answers merged over autosaved drafts.
// Submitting twice returns the stored score.
func (h *StudentPortalHandler) SubmitSession(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	// An empty body submits the autosaved drafts.
	var req model.SubmitAnswersRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	res, err := h.sessionService.Finalize(c.Request.Context(), middleware.GetPrincipal(c), id, req.AnswerMap())
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

// GetSessionResults godoc
// GET /api/v1/student/sessions/:id/results
// Returns the graded review of a completed session.
func (h *StudentPortalHandler) GetSessionResults(c *gin.Context) {
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

// GetSessionTime godoc
// GET /api/v1/student/sessions/:id/time
// Returns the remaining seconds of a session.
func (h *StudentPortalHandler) GetSessionTime(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	status, err := h.sessionService.TimeStatus(c.Request.Context(), middleware.GetPrincipal(c), id)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, status)
}

// ListResults godoc
// GET /api/v1/student/results?page=1&per_page=20
// Returns the caller's completed sessions, newest first.
func (h *StudentPortalHandler) ListResults(c *gin.Context) {
	results, err := h.sessionService.ListResults(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		failService(c, err)
		return
	}

	page, pagination := paginate(c, results)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"results": page}, pagination)
}
