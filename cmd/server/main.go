package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/backend"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/config"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/database"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/logging"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/routes"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	// Structured logging (JSON to stdout)
	logging.Setup()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Document store and identity provider
	b, err := backend.Open(ctx, cfg)
	if err != nil {
		slog.Error("backend setup failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}

	// PostgreSQL log handler (ERROR+ async batch) and retention
	var pgLogHandler *logging.PGHandler
	cleanupDone := make(chan struct{})
	if database.DB != nil {
		pgLogHandler = logging.AttachPostgres(slog.Default().Handler(), database.DB)
		logging.StartCleanup(database.DB, cfg.LogRetention, cleanupDone)
	}

	// One session serves this local view: one signed-in user, one live post feed
	sess, err := session.Open(ctx, b.Provider, b.Docs)
	if err != nil {
		slog.Error("failed to open session", "error", err)
		os.Exit(1)
	}

	// Handlers
	authHandler := handlers.NewAuthHandler(sess, b.Provider)
	postHandler := handlers.NewPostHandler(sess)
	streamHandler := handlers.NewStreamHandler(sess)
	healthHandler := handlers.NewHealthHandler(sess, cfg.StoreBackend)

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    64 * 1024,
		ErrorHandler: customErrorHandler,
	})

	// Sentry middleware
	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))

	// Global middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	// Routes
	routes.Setup(app, cfg,
		middleware.SignedIn(sess.Auth, b.Provider.Verify),
		authHandler, postHandler, streamHandler, healthHandler,
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port, "backend", cfg.StoreBackend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	streamHandler.Close()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	sess.Close()
	cancel()
	close(cleanupDone)
	if pgLogHandler != nil {
		pgLogHandler.Stop()
	}
	sentry.Flush(2 * time.Second)
	b.Close()

	slog.Info("server stopped")
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error", "method", c.Method(), "path", c.Path(), "error", err.Error())
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
