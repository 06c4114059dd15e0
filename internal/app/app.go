package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pzhurov/fitrank/internal/config"
	"github.com/pzhurov/fitrank/internal/handler"
	"github.com/pzhurov/fitrank/internal/provider"
	"github.com/pzhurov/fitrank/internal/repository"
	"github.com/pzhurov/fitrank/internal/service"
	"github.com/pzhurov/fitrank/internal/utils"
	"github.com/pzhurov/fitrank/internal/vault"
	"github.com/pzhurov/fitrank/pkg/observability"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra     Infrastructure
	config    *config.Config
	router    *gin.Engine
	server    *http.Server
	refresher *service.SessionRefresher
}

func NewApp(ctx context.Context, infra Infrastructure, cfg *config.Config) (*App, error) {
	if err := repository.Migrate(ctx, infra.Postgres()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := repository.NewRepositories(infra.Postgres())

	key, err := cfg.Vault.Key()
	if err != nil {
		return nil, fmt.Errorf("invalid vault key: %w", err)
	}
	secretVault, err := vault.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	location, err := time.LoadLocation(cfg.Aggregation.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid aggregation timezone: %w", err)
	}

	engineMetrics, err := observability.NewEngineMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize engine metrics: %w", err)
	}

	providerClient := provider.NewClient(cfg.Provider)

	sessionTokens := utils.NewSessionTokenManager(
		cfg.Session.TokenSecret,
		cfg.Session.TokenExpiry.Duration,
	)

	blacklist := service.NewSessionTokenBlacklist(infra.Redis())
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra)

	leaderboardService := service.NewLeaderboardService(
		repos.Member,
		repos.Metrics,
		secretVault,
		providerClient,
		service.AggregatorConfig{
			StrainStaleness: cfg.Aggregation.StrainStaleness.Duration,
			SleepStaleness:  cfg.Aggregation.SleepStaleness.Duration,
			Location:        location,
			MaxConcurrency:  cfg.Aggregation.MaxConcurrency,
		},
		infra.Logger(),
		engineMetrics,
	)

	enrollmentService := service.NewEnrollmentService(
		repos.Member,
		secretVault,
		providerClient,
		infra.Logger(),
	)

	sessionRefresher := service.NewSessionRefresher(
		providerClient,
		cfg.Session.RefreshInterval.Duration,
		infra.Logger(),
	)

	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService)
	memberHandler := handler.NewMemberHandler(enrollmentService)
	sessionHandler := handler.NewSessionHandler(
		sessionRefresher,
		sessionTokens,
		blacklist,
		cfg.Session.RefreshInterval.Duration,
	)

	router := gin.Default()
	router.Use(otelgin.Middleware("fitrank"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, leaderboardHandler, memberHandler, sessionHandler, sessionTokens, blacklist, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:     infra,
		config:    cfg,
		router:    router,
		server:    srv,
		refresher: sessionRefresher,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	leaderboardHandler *handler.LeaderboardHandler,
	memberHandler *handler.MemberHandler,
	sessionHandler *handler.SessionHandler,
	sessionTokens *utils.SessionTokenManager,
	blacklist *service.SessionTokenBlacklist,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	rateLimit := handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey)
	sessionAuth := handler.SessionAuthMiddleware(sessionTokens, blacklist)

	api := router.Group("/api/v1")
	{
		api.GET("/leaderboard", rateLimit, leaderboardHandler.Get)

		members := api.Group("/members")
		{
			members.POST("", rateLimit, memberHandler.Enroll)
			members.DELETE("", memberHandler.Unlink)
		}

		admin := api.Group("/admin", handler.AdminKeyMiddleware(cfg.Security.AdminKeyHash))
		{
			admin.DELETE("/members/:externalID", memberHandler.AdminUnlink)
		}

		sessions := api.Group("/sessions")
		{
			sessions.POST("/:id/refresh", rateLimit, sessionHandler.Start)
			sessions.GET("/:id/refresh", sessionAuth, sessionHandler.Status)
			sessions.DELETE("/:id/refresh", sessionAuth, sessionHandler.Stop)
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	a.refresher.StopAll()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
