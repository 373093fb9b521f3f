package main

import (
	"context"
	"fmt"
	"os"
	"time"

	redisclient "github.com/foundernet/foundernet-backend/internal/clients/redis"
	"github.com/foundernet/foundernet-backend/internal/db"
	"github.com/foundernet/foundernet-backend/internal/guard"
	httpserver "github.com/foundernet/foundernet-backend/internal/http"
	httpH "github.com/foundernet/foundernet-backend/internal/http/handlers"
	httpMW "github.com/foundernet/foundernet-backend/internal/http/middleware"
	"github.com/foundernet/foundernet-backend/internal/logger"
	"github.com/foundernet/foundernet-backend/internal/observability"
	"github.com/foundernet/foundernet-backend/internal/repos"
	"github.com/foundernet/foundernet-backend/internal/services"
	"github.com/foundernet/foundernet-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	port := utils.GetEnv("PORT", "8080", log)
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	inviteQuotaLimit := utils.GetEnvAsInt("INVITE_QUOTA_LIMIT", 20, log)
	inviteQuotaWindow := utils.GetEnvAsDuration("INVITE_QUOTA_WINDOW", 168*time.Hour, log)
	inviteMessageMaxLen := utils.GetEnvAsInt("INVITE_MESSAGE_MAX_LEN", 500, log)
	discoverMinScore := utils.GetEnvAsInt("DISCOVER_MIN_SCORE", 0, log)
	discoverPageSize := utils.GetEnvAsInt("DISCOVER_PAGE_SIZE", 20, log)
	discoverMaxPageSize := utils.GetEnvAsInt("DISCOVER_MAX_PAGE_SIZE", 50, log)
	discoverScanLimit := utils.GetEnvAsInt("DISCOVER_SCAN_LIMIT", 500, log)

	// Tracing
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "foundernet-backend",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "dev", log),
	})
	if otelShutdown != nil {
		defer otelShutdown(context.Background())
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	connectionRepo := repos.NewConnectionRepo(thePG, log)
	eventRepo := repos.NewEventRepo(thePG, log)
	eventRSVPRepo := repos.NewEventRSVPRepo(thePG, log)
	messageRepo := repos.NewMessageRepo(thePG, log)

	// Guards
	guardStore := guard.NewGormStore(thePG)
	quotaGuard := guard.New(guardStore, inviteQuotaWindow, log)
	capacityGuard := guard.New(guardStore, 0, log)

	// Optional cross-replica score cache
	var scoreCache services.ScoreCache
	if os.Getenv("REDIS_ADDR") != "" {
		cache, err := redisclient.NewScoreCache(log)
		if err != nil {
			log.Warn("Score cache init failed, discovery will recompute", "error", err)
		} else {
			defer cache.Close()
			scoreCache = cache
		}
	}

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(jwtSecretKey, log)
	matchService := services.NewMatchService(connectionRepo, userRepo, messageRepo, quotaGuard,
		services.MatchServiceConfig{
			InviteQuotaLimit:    inviteQuotaLimit,
			InviteMessageMaxLen: inviteMessageMaxLen,
		}, log)
	discoverService := services.NewDiscoverService(userRepo, connectionRepo, scoreCache,
		services.DiscoverServiceConfig{
			MinScore:    discoverMinScore,
			PageSize:    discoverPageSize,
			MaxPageSize: discoverMaxPageSize,
			ScanLimit:   discoverScanLimit,
		}, log)
	rsvpService := services.NewRSVPService(eventRepo, eventRSVPRepo, capacityGuard, log)
	messageService := services.NewMessageService(connectionRepo, messageRepo,
		services.MessageServiceConfig{MaxLen: inviteMessageMaxLen}, log)

	// Handlers
	log.Info("Setting up handlers from main...")
	healthHandler := httpH.NewHealthHandler()
	profileHandler := httpH.NewProfileHandler(discoverService, matchService)
	matchHandler := httpH.NewMatchHandler(matchService)
	eventHandler := httpH.NewEventHandler(rsvpService)
	messageHandler := httpH.NewMessageHandler(messageService)

	// Middleware
	authMiddleware := httpMW.NewAuthMiddleware(log, authService)

	// Server
	log.Info("Setting up router from main...")
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:            log,
		AuthMiddleware: authMiddleware,
		HealthHandler:  healthHandler,
		ProfileHandler: profileHandler,
		MatchHandler:   matchHandler,
		EventHandler:   eventHandler,
		MessageHandler: messageHandler,
	})

	log.Info("Starting server", "port", port)
	if err := server.Run(":" + port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
