package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/farmatrack/farmatrack/internal/app"
	"github.com/farmatrack/farmatrack/internal/attachments"
	"github.com/farmatrack/farmatrack/internal/auth"
	"github.com/farmatrack/farmatrack/internal/invoices"
	"github.com/farmatrack/farmatrack/internal/platform/db"
	"github.com/farmatrack/farmatrack/internal/platform/objstore"
	"github.com/farmatrack/farmatrack/internal/shared"
	"github.com/farmatrack/farmatrack/internal/suppliers"
	"github.com/farmatrack/farmatrack/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "farmatrack_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	roles := shared.RoleMiddleware{Logger: logger}

	var store objstore.ObjectStore
	switch cfg.StorageProvider {
	case "gcs":
		store, err = objstore.NewGCSStore(ctx, cfg.GCSCredentialsJSON)
		if err != nil {
			logger.Error("connect object storage", slog.Any("error", err))
			os.Exit(1)
		}
	default:
		store = objstore.NewSupabaseStore(cfg.StorageBaseURL, cfg.StorageServiceKey, http.DefaultClient)
	}

	attachmentService := attachments.NewService(store, cfg.StorageBucket, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	invoiceRepo := invoices.NewRepository(dbpool)
	invoiceService := invoices.NewService(invoiceRepo, attachmentService, logger)
	invoiceHandler := invoices.NewHandler(logger, invoiceService, roles)

	supplierRepo := suppliers.NewRepository(dbpool)
	supplierService := suppliers.NewService(supplierRepo)
	supplierHandler := suppliers.NewHandler(logger, supplierService, roles)

	userRepo := users.NewRepository(dbpool)
	userService := users.NewService(userRepo)
	userHandler := users.NewHandler(logger, userService, roles)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		Roles:            roles,
		AuthHandler:      authHandler,
		InvoiceHandler:   invoiceHandler,
		SuppliersHandler: supplierHandler,
		UsersHandler:     userHandler,
		Pool:             dbpool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
