package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/config"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/handler"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/middleware"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/repository/postgres"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/repository/storage"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/service"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/websocket"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Initialize zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	ctx := context.Background()

	// Connect to database
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()
	log.Info().Msg("Connected to database")

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(pool)
	accountRepo := postgres.NewAccountRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)
	transactionRepo := postgres.NewTransactionRepository(pool)

	credentials, err := service.NewCredentialService(service.CredentialConfig{
		SecretKey:         cfg.Auth.SecretKey,
		Issuer:            cfg.Auth.Issuer,
		Audience:          cfg.Auth.Audience,
		AccessTokenExpiry: cfg.Auth.AccessTokenExpiry,
		BcryptCost:        cfg.Auth.BcryptCost,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create credential service")
	}

	// Initialize services
	authService := service.NewAuthService(userRepo, credentials)
	userService := service.NewUserService(userRepo, authService)
	accountService := service.NewAccountService(accountRepo)
	categoryService := service.NewCategoryService(categoryRepo)
	transactionService := service.NewTransactionService(transactionRepo, accountRepo, categoryRepo)
	transferService := service.NewTransactionTransferService(transactionRepo, transactionService, cfg.ExportDir)

	// Real-time events
	hub := websocket.NewHub()
	accountService.SetEventPublisher(hub)
	categoryService.SetEventPublisher(hub)
	transactionService.SetEventPublisher(hub)
	transferService.SetEventPublisher(hub)

	if cfg.S3.Enabled() {
		archiveStore, err := storage.NewS3ArchiveStore(ctx, cfg.S3)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 archive store")
		}
		transferService.SetArchiveStore(archiveStore, cfg.S3.PresignExpiry)
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Remote export links enabled")
	}

	authMiddleware := middleware.NewAuthMiddleware(authService)
	loginLimiter := middleware.NewRateLimiterWithConfig(cfg.LoginRateLimit, cfg.LoginBurst)
	defer loginLimiter.Stop()

	handlers := handler.Handlers{
		Auth:        handler.NewAuthHandler(authService),
		User:        handler.NewUserHandler(userService),
		Account:     handler.NewAccountHandler(accountService),
		Category:    handler.NewCategoryHandler(categoryService),
		Transaction: handler.NewTransactionHandler(transactionService),
		Transfer:    handler.NewTransferHandler(transferService, cfg.MaxImportBytes),
		WebSocket:   handler.NewWebSocketHandler(hub, websocket.NewAccessTokenValidator(authService), cfg.CORSOrigins),
		Health:      handler.NewHealthHandler(pool),
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	ipExtractor, err := middleware.ClientIPExtractor(cfg.TrustedProxies)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid TRUSTED_PROXIES")
	}
	e.IPExtractor = ipExtractor

	// Request ID middleware
	e.Use(echomiddleware.RequestID())

	// CORS middleware
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Security headers middleware (helmet-like)
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// Request logging middleware with zerolog
	e.Use(zerologMiddleware())

	// Recovery middleware
	e.Use(echomiddleware.Recover())

	handler.RegisterRoutes(e, authMiddleware, loginLimiter, handlers)

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Int("clients", hub.CloseAll()).Msg("Closed live feed connections")

	log.Info().Msg("Server exited")
}

// zerologMiddleware returns a middleware that logs requests using zerolog
func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")

			return nil
		}
	}
}
