package http

import (
	"time"

	"hidden_mines/internal/http/handlers"
	"hidden_mines/internal/http/middleware"
	"hidden_mines/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Limits configures the rate limiters.
type Limits struct {
	APIRequests   int
	APIWindow     time.Duration
	RevealActions int
	RevealWindow  time.Duration
}

// Deps are the collaborators the routes are built from.
type Deps struct {
	Handler       *handlers.Handler
	Hub           *ws.Hub
	DB            *pgxpool.Pool // optional
	Version       string
	AllowedOrigin string
	Limits        Limits
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.Use(middleware.RequestID(), middleware.Metrics())

	healthHandler := handlers.NewHealthHandler(d.DB, middleware.RedisClient(), d.Handler.Engine, d.Version)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/ws", ws.HandleWS(d.Hub, d.AllowedOrigin))

	if d.Handler.Discloser != nil {
		r.GET("/oracle/disclose/:handle", middleware.RedisRateLimit(d.Limits.APIRequests, d.Limits.APIWindow), d.Handler.Disclose)
	}

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(d.Limits.APIRequests, d.Limits.APIWindow))
	registerAPIRoutes(v1, d.Handler, d.Limits)
}

func registerAPIRoutes(api *gin.RouterGroup, h *handlers.Handler, l Limits) {
	// Auth
	api.POST("/auth/challenge", h.Challenge)
	api.POST("/auth", h.Auth)

	// Public reads
	api.GET("/grid", h.GridStatus)
	api.GET("/rankings", h.GetRankings)
	api.GET("/rankings/best", h.GetBestRankings)

	authed := api.Group("")
	authed.Use(middleware.JWT())

	games := authed.Group("/games")
	{
		games.POST("", h.StartGame)
		games.GET("", h.MyGames)
		games.GET("/active", h.ActiveGame)
		games.GET("/:id", h.GameSummary)
		games.GET("/:id/board", h.GameBoard)
		games.GET("/:id/cells/:cell", h.CellState)
	}

	// Reveal flow, limited per actor
	revealRL := middleware.ActorRateLimit("reveal", l.RevealActions, l.RevealWindow)
	reveal := authed.Group("/reveal")
	{
		reveal.POST("", revealRL, h.RequestReveal)
		reveal.POST("/complete", revealRL, h.CompleteReveal)
		reveal.POST("/cancel", h.CancelReveal)
		reveal.GET("/pending", h.PendingReveal)
	}

	admin := authed.Group("/admin")
	{
		admin.POST("/grid/init", h.InitGrid)
		admin.POST("/grid/reset", h.ResetGrid)
	}
}
