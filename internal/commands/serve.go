package commands

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/schoolledger/ledger-api/docs" // Swagger docs
	"github.com/schoolledger/ledger-api/internal/config"
	"github.com/schoolledger/ledger-api/internal/database"
	"github.com/schoolledger/ledger-api/internal/handlers"
	"github.com/schoolledger/ledger-api/internal/jobs"
	"github.com/schoolledger/ledger-api/internal/middleware"
	"github.com/schoolledger/ledger-api/internal/repository"
	"github.com/schoolledger/ledger-api/internal/services"
	"github.com/schoolledger/ledger-api/internal/storage"
	"github.com/schoolledger/ledger-api/pkg/logger"
)

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	return cmd
}

// @title School Ledger API
// @version 1.0
// @description Finance ledger, bank balances and snapshot backups for a school.

// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func serve(ctx context.Context, migrate bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger.Setup(cfg.Environment, cfg.LogLevel)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
			Release:          Version,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
			defer sentry.Flush(5 * time.Second)
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			logger.Warn("Failed to close database", "error", err)
		}
	}()
	logger.Info("Connected to database")

	if migrate {
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("Migrations applied")
	}

	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}
	logger.Info("Initialized local storage", "path", cfg.StoragePath)

	redisClient, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, idempotency keys disabled", "error", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	repos := repository.NewRepositories(db)

	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	svcs := services.NewServices(repos, repository.NewTransactor(db), store, redisClient, worker, cfg)
	svcs.Job.Schedule(cfg)

	h := handlers.NewHandlers(svcs, func(ctx context.Context) error {
		return database.Ping(ctx, db)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      setupRouter(h, cfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		worker.Shutdown()
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	worker.Shutdown()
	logger.Info("Background worker stopped")

	logger.Info("Server exited gracefully")
	return nil
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", h.Health.Index)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			staff := protected.Group("")
			staff.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAccountant))
			{
				finance := staff.Group("/finance")
				{
					finance.GET("", h.Finance.Index)
					finance.POST("", h.Finance.Create)
					finance.GET("/export", h.Finance.Export)
					finance.PUT("/:id", h.Finance.Update)
					finance.DELETE("/:id", h.Finance.Delete)
				}

				banks := staff.Group("/banks")
				{
					banks.GET("", h.Bank.Index)
					banks.POST("", h.Bank.Create)
					banks.POST("/transaction", h.Bank.Transaction)
					banks.GET("/:id", h.Bank.Show)
					banks.PUT("/:id", h.Bank.Update)
					banks.DELETE("/:id", h.Bank.Delete)
					banks.POST("/:id/activate", h.Bank.Activate)
					banks.POST("/:id/deactivate", h.Bank.Deactivate)
					banks.GET("/:id/reconciliation", h.Bank.Reconciliation)
				}
			}

			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				admin.DELETE("/finance/reset-all", h.Finance.ResetAll)

				admin.GET("/backup/export", h.Backup.Export)
				admin.POST("/backup/restore", h.Backup.Restore)

				if h.Job != nil {
					admin.GET("/jobs/status", h.Job.Status)
					admin.POST("/jobs/backup", h.Job.Backup)
					admin.POST("/jobs/reconcile", h.Job.Reconcile)
				}
			}
		}
	}

	return router
}
