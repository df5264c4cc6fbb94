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

// AdminAccountHandler manages admin accounts. Only admins covering every
// domain get past the service checks.
type AdminAccountHandler struct {
	adminService *service.AdminService
}

func NewAdminAccountHandler(adminService *service.AdminService) *AdminAccountHandler {
	return &AdminAccountHandler{adminService: adminService}
}

// ListAdmins godoc
// GET /api/v1/admin/admins
func (h *AdminAccountHandler) ListAdmins(c *gin.Context) {
	admins, err := h.adminService.List(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"admins": admins})
}

// CreateAdmin godoc
// POST /api/v1/admin/admins
// Adds an admin limited to the given domains, or to all when none are given.
func (h *AdminAccountHandler) CreateAdmin(c *gin.Context) {
	var req model.CreateAdminRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	admin, err := h.adminService.CreateByAdmin(c.Request.Context(), middleware.GetPrincipal(c), req)
	if err != nil {
		failService(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"admin": admin})
}
