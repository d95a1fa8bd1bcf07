package router

import (
	"github.com/gin-gonic/gin"

	"github.com/krishiconnect/backend/internal/config"
	"github.com/krishiconnect/backend/internal/http/handlers"
	"github.com/krishiconnect/backend/internal/http/middleware"
	"github.com/krishiconnect/backend/internal/service"
)

// SetupRouter wires the HTTP routes.
func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		// Tighter budget on the endpoints that send OTPs.
		sendLimit := middleware.RateLimitMiddleware(5, cfg.RateLimitPeriod)

		authGroup.POST("/register", sendLimit, authHandler.Register)
		authGroup.POST("/verify-otp", authHandler.VerifyOTP)
		authGroup.POST("/verify-registration-otp", authHandler.VerifyRegistrationOTP)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh-token", authHandler.RefreshToken)
		authGroup.POST("/forgot-password", sendLimit, authHandler.ForgotPassword)
		authGroup.POST("/reset-password", authHandler.ResetPassword)
		authGroup.POST("/resend-otp", authHandler.ResendOTP)
	}

	protectedAuth := api.Group("/auth")
	protectedAuth.Use(middleware.AuthMiddleware(tokenManager))
	{
		protectedAuth.POST("/logout", authHandler.Logout)
	}

	return r
}
