package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/model"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
)

// StudentManagementHandler handles admin-facing student management (approval, session reset).
type StudentManagementHandler struct {
	studentService *service.StudentService
	authService    *service.AuthService
}

// NewStudentManagementHandler creates a new StudentManagementHandler.
func NewStudentManagementHandler(
	studentService *service.StudentService,
	authService *service.AuthService,
) *StudentManagementHandler {
	return &StudentManagementHandler{
		studentService: studentService,
		authService:    authService,
	}
}

// ListPending godoc
// GET /api/v1/admin/students/pending?page=1&per_page=20
// Lists registrations waiting for approval, oldest first.
func (h *StudentManagementHandler) ListPending(c *gin.Context) {
	students, err := h.studentService.ListPending(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		failService(c, err)
		return
	}
	if students == nil {
		students = []model.Student{}
	}

	page, pagination := paginate(c, students)
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"students": page}, pagination)
}

// ApproveStudent godoc
// POST /api/v1/admin/students/:id/approve
func (h *StudentManagementHandler) ApproveStudent(c *gin.Context) {
	id, ok := paramStudentID(c)
	if !ok {
		return
	}

	if err := h.studentService.Approve(c.Request.Context(), middleware.GetPrincipal(c), id); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student approved"})
}

// RejectStudent godoc
// DELETE /api/v1/admin/students/:id
// Deletes a registration that was never approved.
func (h *StudentManagementHandler) RejectStudent(c *gin.Context) {
	id, ok := paramStudentID(c)
	if !ok {
		return
	}

	if err := h.studentService.Reject(c.Request.Context(), middleware.GetPrincipal(c), id); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student registration rejected"})
}

// ResetStudentSession godoc
// POST /api/v1/admin/students/:id/reset-session
// Clears a student's active Redis session, allowing them to log in on a new device.
func (h *StudentManagementHandler) ResetStudentSession(c *gin.Context) {
	id, ok := paramStudentID(c)
	if !ok {
		return
	}

	if err := h.authService.ResetStudentSession(c.Request.Context(), id); err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "student session reset successfully"})
}

func paramStudentID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
