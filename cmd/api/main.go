package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"studium/docs"
	"studium/internal/auth"
	"studium/internal/config"
	"studium/internal/database"
	"studium/internal/database/migration"
	"studium/internal/health"
	handlers "studium/internal/http/handler"
	"studium/internal/http/middleware"
	"studium/internal/logger"
	tracing "studium/internal/otel"
	"studium/internal/repository/postgres"
	"studium/internal/service"
	"studium/internal/storage"
)

// @title Studium API
// @version 0.1.0
// @description Learning companion API: uploaded PDF sources.
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	if err := run(cfg, lg); err != nil {
		lg.Error("api stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, lg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, lg, handlers.ServiceName)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	// PostgreSQL pool (pgx stdlib + otelsql, wrapped by sqlx)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, db.DB, lg, cfg.Database.Host); err != nil {
			return err
		}
	}

	store, uploadDir, presign, err := newStorage(cfg)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}

	sourceSvc := service.NewSourceService(store, postgres.NewSourcePostgres(db), service.Options{
		UploadDir:     uploadDir,
		SniffContent:  cfg.Storage.SniffContentType,
		PresignExpiry: presign,
		Logger:        lg,
	})

	redisOpts, err := redis.ParseURL(cfg.Redis.URL())
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	readiness := health.NewChecker(3*time.Second).
		Add("postgres", health.Database(db)).
		Add("redis", health.Redis(rdb)).
		Add("ollama", health.Ollama(health.NewHTTPClient(5*time.Second), cfg.LLM.Host))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promMiddleware, err := middleware.NewPrometheusMiddleware(reg, "/health", "/ready")
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "Studium API",
		ErrorHandler:          handlers.ErrorHandler(lg),
		BodyLimit:             int(cfg.MaxUploadBytes),
		DisableStartupMessage: true,
	})

	app.Use(fiberrecover.New())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/health"
	})))
	app.Use(middleware.Logger(lg))
	app.Use(promMiddleware.Handler())
	app.Use(middleware.CORS(cfg.AllowedOrigins))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, handlers.Dependencies{
		Sources:   sourceSvc,
		Identity:  auth.NewStatic(cfg.Auth.DevUserID),
		DB:        db,
		Readiness: readiness,
		Logger:    lg,
	})

	go func() {
		<-ctx.Done()
		lg.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			lg.Error("graceful shutdown failed", slog.String("error", err.Error()))
		}
	}()

	lg.Info("api listening",
		slog.String("addr", cfg.Addr()),
		slog.String("storage_backend", cfg.Storage.Backend),
		slog.Any("allowed_origins", cfg.AllowedOrigins))

	if err := app.Listen(cfg.Addr()); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

// newStorage builds the configured backend and returns it with the upload location
// and the download URL lifetime.
func newStorage(cfg *config.AppConfig) (storage.Storage, string, time.Duration, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMinIO:
		s, err := storage.NewMinIO(cfg.MinIO)
		if err != nil {
			return nil, "", 0, err
		}
		return s, "uploads", time.Duration(cfg.MinIO.PresignExpirySec) * time.Second, nil
	default:
		s, err := storage.NewLocal(cfg.Storage.LocalPath)
		if err != nil {
			return nil, "", 0, err
		}
		return s, cfg.Storage.UploadDir, 0, nil
	}
}
