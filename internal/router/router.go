package router

import (
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-assess/internal/config"
	"github.com/stemsi/exstem-assess/internal/handler"
	"github.com/stemsi/exstem-assess/internal/metrics"
	"github.com/stemsi/exstem-assess/internal/middleware"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentMgmt   *handler.StudentManagementHandler
	AdminAccount  *handler.AdminAccountHandler
	Exam          *handler.ExamHandler
	Question      *handler.QuestionHandler
	Dashboard     *handler.DashboardHandler
	WS            *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(metrics.MetricsMiddleware())
	router.Use(middleware.Brotli(brotli.DefaultCompression, "/metrics"))

	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.PrometheusHandler())

	authLimiter := middleware.NewRateLimiter(cfg.AuthRatePerMinute, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/student/register", authLimiter.Middleware(), handlers.Auth.StudentRegister)
		auth.POST("/student/login", authLimiter.Middleware(), handlers.Auth.StudentLogin)
		auth.POST("/admin/login", authLimiter.Middleware(), handlers.Auth.AdminLogin)

		// Authenticated profile routes
		auth.POST("/student/logout", middleware.RequireStudentJWT(authService), handlers.Auth.StudentLogout)
		auth.GET("/student/me", middleware.RequireStudentJWT(authService), handlers.Auth.GetStudentProfile)
		auth.GET("/admin/me", middleware.RequireAdminJWT(authService), handlers.Auth.GetAdminProfile)
	}

	// ─── 2. Student Group (JWT + Single Device) ────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(
		middleware.RequireStudentJWT(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		studentAPI.GET("/exams", handlers.StudentPortal.ListExams)
		studentAPI.GET("/active-session", handlers.StudentPortal.GetActiveSession)
		studentAPI.POST("/sessions", handlers.StudentPortal.StartSession)
		studentAPI.GET("/sessions/:id", handlers.StudentPortal.GetSession)
		studentAPI.POST("/sessions/:id/submit", handlers.StudentPortal.SubmitSession)
		studentAPI.GET("/sessions/:id/results", handlers.StudentPortal.GetSessionResults)
		studentAPI.GET("/sessions/:id/time", handlers.StudentPortal.GetSessionTime)
		studentAPI.GET("/results", handlers.StudentPortal.ListResults)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireStudentWSAuth(authService),
		middleware.CheckSingleDeviceSession(authService),
	)
	{
		ws.GET("/student/sessions/:id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (JWT + Domain Scope) ───────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/dashboard", handlers.Dashboard.GetDashboardData)

		// Admin accounts (all-domains admins only)
		adminAPI.GET("/admins", handlers.AdminAccount.ListAdmins)
		adminAPI.POST("/admins", handlers.AdminAccount.CreateAdmin)

		// Student management
		adminAPI.GET("/students/pending", handlers.StudentMgmt.ListPending)
		adminAPI.POST("/students/:id/approve", handlers.StudentMgmt.ApproveStudent)
		adminAPI.DELETE("/students/:id", handlers.StudentMgmt.RejectStudent)
		adminAPI.POST("/students/:id/reset-session", handlers.StudentMgmt.ResetStudentSession)

		// Question bank
		domainAPI := adminAPI.Group("/domains/:domain", middleware.RequireDomainAccess("domain"))
		{
			domainAPI.GET("/questions", handlers.Question.ListQuestions)
			domainAPI.POST("/questions", handlers.Question.AddQuestion)
		}
		adminAPI.GET("/questions/:question_id", handlers.Question.GetQuestion)
		adminAPI.PUT("/questions/:question_id", handlers.Question.UpdateQuestion)
		adminAPI.DELETE("/questions/:question_id", handlers.Question.DeleteQuestion)

		// Exam management
		adminAPI.GET("/exams", handlers.Exam.ListExams)
		adminAPI.POST("/exams", handlers.Exam.CreateExam)
		adminAPI.GET("/exams/:exam_id", handlers.Exam.GetExam)
		adminAPI.PATCH("/exams/:exam_id/visibility", handlers.Exam.SetVisibility)
		adminAPI.GET("/exams/:exam_id/questions", handlers.Exam.GetQuestionPaper)
		adminAPI.PUT("/exams/:exam_id/questions", handlers.Exam.SetQuestionPaper)
		adminAPI.GET("/exams/:exam_id/results", handlers.Exam.GetExamResults)
		adminAPI.GET("/exams/:exam_id/retakes", handlers.Exam.ListRetakes)
		adminAPI.PUT("/exams/:exam_id/retakes", handlers.Exam.GrantRetake)

		// Result review
		adminAPI.GET("/sessions/:id", handlers.Exam.GetSessionResult)
	}

	// Unknown routes use the standard envelope.
	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	})

	return router
}
