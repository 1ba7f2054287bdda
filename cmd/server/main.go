package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Laisky/zap"
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/database"
	"github.com/localnerve/orca-tagsdb/internal/handlers"
	"github.com/localnerve/orca-tagsdb/internal/logger"
	"github.com/localnerve/orca-tagsdb/internal/services"
	"github.com/redis/go-redis/v9"

	_ "github.com/localnerve/orca-tagsdb/docs/api" // Swagger docs
)

// @title orca-tagsdb API
// @version 1.0.0
// @description Tags, user lists, access and audit for regulated clinical trial outputs
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/orca-tagsdb
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "orca-tagsdb: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, !cfg.IsProduction())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}()

	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	store, err := services.NewObjectStore(cfg)
	if err != nil {
		return err
	}

	sink, closeSink, err := services.NewAuditSink(cfg, db)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeSink(); err != nil {
			log.Warn("close audit sink", zap.Error(err))
		}
	}()
	var rdb *redis.Client
	if s := services.StreamSinkOf(sink); s != nil {
		rdb = s.Client
	}

	reconciler := services.NewReconciler(db, log)
	engine := services.NewAuditEngine(cfg, db, sink, reconciler, log)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(log),
		DisableStartupMessage: cfg.IsProduction(),
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(compress.New())

	prometheus := fiberprometheus.New("orca")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	app.Get("/swagger/*", swagger.HandlerDefault)

	handlers.Register(app, handlers.Deps{
		Config:    cfg,
		DB:        db,
		Log:       log,
		Audit:     engine,
		Store:     store,
		Watermark: services.TextWatermarker{Label: "DRAFT"},
		Redis:     rdb,
	})

	app.Use(handlers.NotFound)

	if cfg.AuthzURL != "" {
		log.Info("authorizer will be initialized on first authenticated request", zap.String("url", cfg.AuthzURL))
	} else {
		log.Warn("AUTHZ_URL not set, trusting the X-User gateway header")
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info("gracefully shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	log.Info("starting server",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
		zap.String("db_type", cfg.DBType))
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	log.Info("server stopped")
	return nil
}
