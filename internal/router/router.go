package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/meridianedu/assess-backend/internal/config"
	"github.com/meridianedu/assess-backend/internal/handler"
	"github.com/meridianedu/assess-backend/internal/middleware"
	"github.com/meridianedu/assess-backend/internal/model"
	"github.com/meridianedu/assess-backend/internal/response"
	"github.com/meridianedu/assess-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth          *handler.AuthHandler
	StudentPortal *handler.StudentPortalHandler
	StudentMgmt   *handler.StudentManagementHandler
	Assignment    *handler.AssignmentHandler
	Submission    *handler.SubmissionHandler
	Media         *handler.MediaHandler
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
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Idempotency-Key"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Apply brotli middleware globally.
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/student/login", handlers.Auth.StudentLogin)
		auth.POST("/admin/login", handlers.Auth.AdminLogin)

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
		studentAPI.GET("/assignments", handlers.StudentPortal.ListAssignments)
		studentAPI.GET("/assignments/:assignment_id", handlers.StudentPortal.GetAssignment)
		studentAPI.POST("/assignments/:assignment_id/attempt", handlers.StudentPortal.StartAttempt)
		studentAPI.GET("/assignments/:assignment_id/attempt/state", handlers.StudentPortal.GetAttemptState)
		studentAPI.POST("/assignments/:assignment_id/attempt/submit", handlers.StudentPortal.SubmitAttempt)

		// Audio prompts referenced by listening questions. Served through
		// the authenticated group so the media middleware chain can accept
		// ?token= from <audio src> elements.
		studentAPI.GET("/media/:filename",
			middleware.CacheControl(31536000),
			handlers.Media.DownloadMedia,
		)
	}

	// ─── 3. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(authService))
	{
		ws.GET("/student/assignments/:assignment_id/session", handlers.WS.SessionStream)
	}

	// ─── 4. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		// Media upload
		adminAPI.POST("/media/upload",
			middleware.RequirePermission(string(model.PermissionMediaUpload)),
			handlers.Media.UploadMedia,
		)

		// Student management
		adminAPI.GET("/students",
			middleware.RequirePermission(string(model.PermissionStudentsRead)),
			handlers.StudentMgmt.ListStudents,
		)
		adminAPI.POST("/students",
			middleware.RequirePermission(string(model.PermissionStudentsWrite)),
			handlers.StudentMgmt.CreateStudent,
		)
		adminAPI.PUT("/students/:id",
			middleware.RequirePermission(string(model.PermissionStudentsWrite)),
			handlers.StudentMgmt.UpdateStudent,
		)
		adminAPI.DELETE("/students/:id",
			middleware.RequirePermission(string(model.PermissionStudentsWrite)),
			handlers.StudentMgmt.DeleteStudent,
		)
		adminAPI.POST("/students/:id/reset-session",
			middleware.RequirePermission(string(model.PermissionStudentsResetSession)),
			handlers.StudentMgmt.ResetStudentSession,
		)

		// Assignment management
		adminAPI.GET("/assignments",
			middleware.RequirePermission(string(model.PermissionAssignmentsRead)),
			handlers.Assignment.ListAssignments,
		)
		adminAPI.POST("/assignments",
			middleware.RequirePermission(string(model.PermissionAssignmentsWrite)),
			handlers.Assignment.CreateAssignment,
		)
		adminAPI.GET("/assignments/:assignment_id",
			middleware.RequirePermission(string(model.PermissionAssignmentsRead)),
			handlers.Assignment.GetAssignment,
		)
		adminAPI.PUT("/assignments/:assignment_id",
			middleware.RequirePermission(string(model.PermissionAssignmentsWrite)),
			handlers.Assignment.UpdateAssignment,
		)
		adminAPI.DELETE("/assignments/:assignment_id",
			middleware.RequirePermission(string(model.PermissionAssignmentsWrite)),
			handlers.Assignment.DeleteAssignment,
		)
		adminAPI.POST("/assignments/:assignment_id/publish",
			middleware.RequirePermission(string(model.PermissionAssignmentsPublish)),
			handlers.Assignment.PublishAssignment,
		)
		adminAPI.POST("/assignments/:assignment_id/refresh-cache",
			middleware.RequirePermission(string(model.PermissionAssignmentsPublish)),
			handlers.Assignment.RefreshAssignmentCache,
		)

		// Grading queue
		adminAPI.GET("/assignments/:assignment_id/submissions",
			middleware.RequirePermission(string(model.PermissionSubmissionsRead)),
			handlers.Submission.ListSubmissions,
		)
		adminAPI.GET("/submissions/:submission_id",
			middleware.RequirePermission(string(model.PermissionSubmissionsRead)),
			handlers.Submission.GetSubmission,
		)
		adminAPI.POST("/submissions/:submission_id/grade",
			middleware.RequirePermission(string(model.PermissionSubmissionsGrade)),
			handlers.Submission.GradeSubmission,
		)
	}

	return router
}
