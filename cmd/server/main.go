package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/krishiconnect/backend/internal/config"
	"github.com/krishiconnect/backend/internal/db"
	httpHandlers "github.com/krishiconnect/backend/internal/http/handlers"
	httpRouter "github.com/krishiconnect/backend/internal/http/router"
	"github.com/krishiconnect/backend/internal/logger"
	"github.com/krishiconnect/backend/internal/notify"
	"github.com/krishiconnect/backend/internal/repository"
	"github.com/krishiconnect/backend/internal/secretstore"
	"github.com/krishiconnect/backend/internal/service"
)

func main() {
	// Context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: failed to load configuration: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Database and migrations.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: failed to connect to database: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: migrations failed: %v", err)
	}

	// Secret store: Redis when configured, in-process fallback otherwise.
	var store secretstore.Store
	if cfg.RedisAddr != "" {
		redisStore, err := secretstore.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("main: failed to connect to redis: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		logger.Log.Warn("REDIS_ADDR not set, using in-memory secret store")
		store = secretstore.NewMemoryStore()
	}

	// Outbound messaging.
	var emailSender notify.EmailSender
	if cfg.SMTPUser != "" && cfg.SMTPPassword != "" {
		emailSender = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFromName, cfg.SMTPFrom)
	} else {
		logger.Log.Warn("SMTP credentials not set, emails will be logged instead of sent")
		emailSender = notify.LogEmailSender{}
	}
	dedupSender := notify.NewDedupSender(emailSender, store)

	var smsSender notify.SMSSender
	if cfg.SMSGatewayURL != "" {
		smsSender = notify.NewGatewaySMSSender(cfg.SMSGatewayURL, cfg.SMSAPIKey, cfg.SMSSenderID)
	} else {
		logger.Log.Warn("SMS_GATEWAY_URL not set, SMS will be logged instead of sent")
		smsSender = notify.LogSMSSender{}
	}

	// Repositories.
	userRepo := repository.NewUserRepository(dbConn)
	otpRepo := repository.NewOTPRepository(dbConn)

	// Services.
	codec := service.NewPasswordCodec()
	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.RefreshSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	emailOTP := service.NewEmailOTPService(otpRepo, userRepo, dedupSender, codec, service.EmailOTPConfig{
		TTL:               cfg.OTPTTL,
		MaxAttempts:       cfg.OTPMaxAttempts,
		ResendWindow:      cfg.OTPResendWindow,
		DedupWindow:       cfg.EmailDedupWindow,
		ResendDedupWindow: cfg.EmailDedupResendWindow,
	})
	phoneOTP := service.NewPhoneOTPService(store, smsSender, service.PhoneOTPConfig{
		TTL:          cfg.OTPTTL,
		MaxAttempts:  cfg.OTPMaxAttempts,
		AllowRelaxed: cfg.AllowRelaxedOTP,
	})
	authService := service.NewAuthService(userRepo, emailOTP, phoneOTP, tokenManager, store, codec, cfg.PendingRegistrationTTL)

	// HTTP handlers and router.
	authHandler := httpHandlers.NewAuthHandler(authService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn, store)

	engine := httpRouter.SetupRouter(cfg, authHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Shut the server down when a signal arrives.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: http server shutdown error: %v", err)
		}
	}()

	log.Printf("main: HTTP server listening on port %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: server exited with error: %v", err)
	}
}

// safeClose closes the database connection.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: failed to close database: %v", err)
	}
}
