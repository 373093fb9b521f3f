package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/foundernet/foundernet-backend/internal/http/handlers"
	httpMW "github.com/foundernet/foundernet-backend/internal/http/middleware"
	"github.com/foundernet/foundernet-backend/internal/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler  *httpH.HealthHandler
	ProfileHandler *httpH.ProfileHandler
	MatchHandler   *httpH.MatchHandler
	EventHandler   *httpH.EventHandler
	MessageHandler *httpH.MessageHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("foundernet-backend"))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Discovery and scoring
		if cfg.ProfileHandler != nil {
			protected.GET("/profiles/discover", cfg.ProfileHandler.Discover)
			protected.GET("/profiles/:id/compatibility", cfg.ProfileHandler.Compatibility)
			protected.POST("/profiles/:id/decide", cfg.ProfileHandler.Decide)
		}

		// Connection ledger
		if cfg.MatchHandler != nil {
			protected.GET("/matches", cfg.MatchHandler.List)
			protected.GET("/matches/:id", cfg.MatchHandler.Get)
			protected.POST("/matches/:id/respond", cfg.MatchHandler.Respond)
			protected.GET("/me/invite-quota", cfg.MatchHandler.InviteQuota)
		}

		// Message log
		if cfg.MessageHandler != nil {
			protected.GET("/matches/:id/messages", cfg.MessageHandler.List)
			protected.POST("/matches/:id/messages", cfg.MessageHandler.Send)
			protected.POST("/matches/:id/messages/read", cfg.MessageHandler.MarkRead)
		}

		// Events
		if cfg.EventHandler != nil {
			protected.GET("/events/:id", cfg.EventHandler.Get)
			protected.POST("/events/:id/rsvp", cfg.EventHandler.RSVP)
		}
	}

	return r
}

// Server wraps the configured engine so callers never touch gin directly.
type Server struct {
	engine *gin.Engine
}

func NewServer(cfg RouterConfig) *Server {
	return &Server{engine: NewRouter(cfg)}
}

func (s *Server) Run(address string) error {
	return s.engine.Run(address)
}
