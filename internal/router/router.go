package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/handler"
	"github.com/stemsi/exstem-proctor/internal/middleware"
	"github.com/stemsi/exstem-proctor/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Session  *handler.SessionHandler
	Question *handler.QuestionHandler
	WS       *handler.WSHandler
	Monitor  *handler.MonitorHandler
	System   *handler.SystemHandler
}

// Limiters are the rate limiters guarding public routes. The caller owns
// them so idle buckets can be pruned.
type Limiters struct {
	SessionCreate  *middleware.RateLimiter
	ProctorLogin   *middleware.RateLimiter
	SessionActions *middleware.RateLimiter
}

// NewLimiters sizes the limiters from config.
func NewLimiters(cfg *config.Config) *Limiters {
	return &Limiters{
		SessionCreate:  middleware.NewRateLimiter(cfg.SessionCreateRate, time.Minute),
		ProctorLogin:   middleware.NewRateLimiter(cfg.LoginRate, time.Minute),
		SessionActions: middleware.NewRateLimiter(cfg.SessionActionRate, time.Minute),
	}
}

// Prune drops idle buckets from every limiter.
func (l *Limiters) Prune(idle time.Duration) int {
	return l.SessionCreate.Prune(idle) + l.ProctorLogin.Prune(idle) + l.SessionActions.Prune(idle)
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	sessions middleware.SessionLookup,
	handlers *Handlers,
	limiters *Limiters,
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
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Accept-Language", response.HeaderRequestID}
	corsConfig.ExposeHeaders = []string{response.HeaderRequestID}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	router.GET("/health", handlers.System.Health)
	router.GET("/ready", handlers.System.Ready)

	api := router.Group("/api/v1")

	// ─── 0. Public Group (No Auth) ─────────────────────────────────────
	api.GET("/questions", middleware.CacheControl(300), handlers.Question.ListQuestions)
	api.POST("/sessions",
		limiters.SessionCreate.Middleware(middleware.KeyByClientIP),
		handlers.Session.CreateSession,
	)

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/proctor/login",
			limiters.ProctorLogin.Middleware(middleware.KeyByClientIP),
			handlers.Auth.ProctorLogin,
		)
		authGroup.GET("/proctor/me", middleware.RequireProctorJWT(auth), handlers.Auth.GetProctorProfile)
	}

	// ─── 2. Session Group (Session token) ──────────────────────────────
	sessionAPI := api.Group("/session")
	sessionAPI.Use(
		middleware.RequireSessionJWT(auth),
		limiters.SessionActions.Middleware(middleware.KeyBySession),
		middleware.LoadSession(sessions),
		middleware.NoStore(),
	)
	{
		sessionAPI.GET("", handlers.Session.GetSession)
		sessionAPI.POST("/sign-in", handlers.Session.SignIn)
		sessionAPI.POST("/back", handlers.Session.Back)
		sessionAPI.POST("/start", handlers.Session.Start)
		sessionAPI.POST("/reset", handlers.Session.Reset)
		sessionAPI.PUT("/answers/mcq/:question_id", handlers.Session.AnswerMCQ)
		sessionAPI.PUT("/answers/saq/:question_id", handlers.Session.AnswerSAQ)
		sessionAPI.POST("/integrity", handlers.Session.ReportIntegrity)
		sessionAPI.POST("/submit", handlers.Session.Submit)
	}

	// ─── 3. WebSocket Group (token in query) ───────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireSessionJWT(auth), middleware.LoadSession(sessions))
	{
		ws.GET("/session/stream", handlers.WS.SessionStream)
	}

	// ─── 4. Proctor Group (Proctor JWT) ────────────────────────────────
	proctorAPI := api.Group("/proctor")
	proctorAPI.Use(middleware.RequireProctorJWT(auth))
	{
		proctorAPI.GET("/monitor", handlers.Monitor.MonitorSSE)
		proctorAPI.GET("/stats", handlers.Monitor.GetSnapshot)
		proctorAPI.GET("/violations", handlers.Monitor.ListViolations)
		proctorAPI.GET("/submissions", handlers.Monitor.ListSubmissions)
		proctorAPI.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	return router
}
