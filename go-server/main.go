package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fonsecaaso/linkdrop/go-server/config"
	db "github.com/fonsecaaso/linkdrop/go-server/internal/database"
	"github.com/fonsecaaso/linkdrop/go-server/internal/filestore"
	"github.com/fonsecaaso/linkdrop/go-server/internal/geo"
	"github.com/fonsecaaso/linkdrop/go-server/internal/metrics"
	"github.com/fonsecaaso/linkdrop/go-server/internal/observability"
	"github.com/fonsecaaso/linkdrop/go-server/internal/repository"
	route "github.com/fonsecaaso/linkdrop/go-server/internal/routes"
	"github.com/fonsecaaso/linkdrop/go-server/internal/service"
	"github.com/fonsecaaso/linkdrop/go-server/internal/token"
	"github.com/fonsecaaso/linkdrop/go-server/internal/tracing"
)

const (
	shutdownTimeout        = 15 * time.Second
	collectorInterval      = 15 * time.Second
	sessionCleanupInterval = time.Hour
	fileStoreTimeout       = 60 * time.Second
)

func main() {
	bootstrap := zap.Must(zap.NewProduction())
	zap.ReplaceGlobals(bootstrap)

	cfg, err := config.LoadConfig()
	if err != nil {
		bootstrap.Fatal("error loading configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obs, err := observability.Setup(ctx, cfg)
	if err != nil {
		bootstrap.Fatal("observability failed to initialize", zap.Error(err))
	}
	logger := obs.Logger
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := obs.Shutdown(shutdownCtx); err != nil {
			bootstrap.Error("observability shutdown failed", zap.Error(err))
		}
	}()

	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.PostgresURL); err != nil {
			logger.Fatal("migrations failed", zap.Error(err))
		}
	}

	pgClient, err := db.NewPostgresClient(ctx, cfg)
	if err != nil {
		logger.Fatal("postgres failed to initialize", zap.Error(err))
	}
	defer pgClient.Close()
	logger.Info("postgres connection established")

	redisClient, err := db.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal("redis failed to initialize", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info("redis connection established")
	} else {
		logger.Info("REDIS_ADDR not set, geolocation cache disabled")
	}

	links := repository.NewPostgresLinkRepository(pgClient)
	clicks := repository.NewPostgresClickRepository(pgClient)
	users := repository.NewUserRepository(pgClient)
	sessions := repository.NewSessionRepository(pgClient)

	locator := geo.NewClient(cfg.GeoIPURL, cfg.GeoIPTimeout,
		tracing.NewHTTPClient(logger, "geoip", cfg.GeoIPTimeout), redisClient)
	files := filestore.NewClient(cfg.FileServerURL, cfg.FileServerAPIKey,
		tracing.NewHTTPClient(logger, "filestore", fileStoreTimeout))

	authService := service.NewAuthService(users, sessions, token.NewSigner(cfg.SessionSecret), cfg.SessionTTL)
	services := route.Services{
		Resolver: service.NewResolver(links, service.NewClickRecorder(clicks, locator)),
		Links:    service.NewLinkService(links, clicks, files, cfg.BaseURL),
		Stats:    service.NewStatsService(links, clicks, users),
		Auth:     authService,
		Admin:    service.NewAdminService(users, sessions, links, files),
	}

	if cfg.SeedAdminEmail != "" {
		if err := authService.SeedAdmin(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			logger.Error("admin seed failed", zap.Error(err))
		}
	}

	metrics.StartCollector(ctx, pgClient, collectorInterval)
	go purgeSessions(ctx, authService, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           route.SetupRouter(ctx, cfg, services, obs.MetricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("base_url", cfg.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

func purgeSessions(ctx context.Context, auth service.AuthService, logger *zap.Logger) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PurgeExpiredSessions(ctx)
			if err != nil {
				logger.Warn("session cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}
