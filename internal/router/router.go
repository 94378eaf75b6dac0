package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/devarena/devarena-backend/internal/config"
	"github.com/devarena/devarena-backend/internal/handler"
	"github.com/devarena/devarena-backend/internal/middleware"
	"github.com/devarena/devarena-backend/internal/response"
	"github.com/devarena/devarena-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth       *handler.AuthHandler
	Portal     *handler.PortalHandler
	Session    *handler.SessionHandler
	Instructor *handler.InstructorHandler
	WS         *handler.WSHandler
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
		auth.POST("/participant/login", handlers.Auth.ParticipantLogin)
		auth.POST("/instructor/login", handlers.Auth.InstructorLogin)

		auth.POST("/participant/logout", middleware.RequireParticipantJWT(authService), handlers.Auth.ParticipantLogout)
	}

	// ─── 2. Participant Group (JWT + Single Device) ────────────────────
	participantAPI := router.Group("/api/v1/participant")
	participantAPI.Use(
		middleware.RequireParticipantJWT(authService),
		middleware.CheckParticipantLogin(authService),
	)
	{
		participantAPI.GET("/lobby", handlers.Portal.GetLobby)
		participantAPI.POST("/assessments/:assessment_id/join", handlers.Portal.JoinAssessment)
		participantAPI.GET("/assessments/:assessment_id/paper", handlers.Portal.GetPaper)

		// Session engine routes.
		participantAPI.GET("/sessions/:session_id/state", handlers.Session.GetState)
		participantAPI.POST("/sessions/:session_id/integrity/require", handlers.Session.RequireIntegrity)
		participantAPI.POST("/sessions/:session_id/integrity/confirm", handlers.Session.ConfirmIntegrity)
		participantAPI.POST("/sessions/:session_id/navigate", handlers.Session.Navigate)
		participantAPI.POST("/sessions/:session_id/answers", handlers.Session.SaveAnswer)
		participantAPI.POST("/sessions/:session_id/submit", handlers.Session.Submit)
	}

	// ─── 3. WebSocket Group (Participant WS Auth) ──────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireParticipantWSAuth(authService))
	{
		ws.GET("/participant/sessions/:session_id/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Instructor Group (JWT) ─────────────────────────────────────
	instructorAPI := router.Group("/api/v1/instructor")
	instructorAPI.Use(middleware.RequireInstructorJWT(authService))
	{
		instructorAPI.GET("/assessments/:assessment_id/results", handlers.Instructor.GetResults)
	}

	return router
}
