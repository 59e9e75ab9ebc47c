package main

// @title VyaparHub API
// @version 1.0
// @description Billing and storefront backend for small-business record keeping.

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rahulmehra/vyaparhub/config"
	"github.com/rahulmehra/vyaparhub/pkg/container"
	custommiddleware "github.com/rahulmehra/vyaparhub/pkg/middleware"
)

func main() {
	// Load .env if present; real deployments set env vars directly
	_ = godotenv.Load()

	cfg := config.Load()

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: 0.2,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Printf("failed to initialize Sentry: %v", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	c, err := container.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}
	defer c.Close()

	// Cron jobs: stale order sweep and nightly reconciliation
	if err := c.CronManager.SetupJobs(); err != nil {
		log.Fatalf("failed to setup cron jobs: %v", err)
	}
	c.CronManager.Start()

	e := echo.New()
	e.HideBanner = true

	// Rate limiters
	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)
	authRateLimiter := custommiddleware.NewRateLimiter(5, 2)     // login brute-force guard
	checkoutRateLimiter := custommiddleware.NewRateLimiter(30, 10) // public storefront checkout
	webhookRateLimiter := custommiddleware.NewRateLimiter(100, 20) // gateway deliveries, bursty on retry

	// Global middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogError:  true,
		LogValuesFunc: func(ec echo.Context, v middleware.RequestLoggerValues) error {
			c.Logger.Info("request",
				"method", ec.Request().Method,
				"uri", v.URI,
				"status", v.Status,
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(c.Metrics.Middleware())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{
			"http://localhost:3000",
			cfg.FrontendURL,
		},
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowCredentials: true,
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
		},
	}))

	e.Use(middleware.Gzip())
	e.Use(middleware.Secure())
	e.Use(globalRateLimiter.RateLimitMiddleware())

	// Health check endpoints (public)
	e.GET("/", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]any{
			"name":        "VyaparHub API",
			"status":      "running",
			"environment": cfg.APIEnvironment,
			"timestamp":   time.Now().Unix(),
		})
	})

	e.GET("/health", func(ec echo.Context) error {
		ctx, cancel := context.WithTimeout(ec.Request().Context(), 2*time.Second)
		defer cancel()

		if err := c.DB.Ping(ctx); err != nil {
			return ec.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":   "unhealthy",
				"database": "down",
			})
		}
		if _, err := c.Cache.Get(ctx, "health_check"); err != nil && err.Error() != "redis: nil" {
			return ec.JSON(http.StatusServiceUnavailable, map[string]any{
				"status": "unhealthy",
				"cache":  "down",
			})
		}

		return ec.JSON(http.StatusOK, map[string]any{
			"status":   "healthy",
			"database": "up",
			"cache":    "up",
		})
	})

	// Prometheus metrics endpoint (public)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := e.Group("/api/v1")

	v1.GET("/ping", func(ec echo.Context) error {
		return ec.JSON(http.StatusOK, map[string]string{
			"message": "pong",
		})
	})

	// Authentication routes (public)
	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/register", c.AuthHandler.Register, authRateLimiter.RateLimitMiddleware())
		authRoutes.POST("/login", c.AuthHandler.Login, authRateLimiter.RateLimitMiddleware())
	}

	// Public storefront checkout (addressed by shop slug, no auth)
	catalogRoutes := v1.Group("/catalog", checkoutRateLimiter.RateLimitMiddleware())
	{
		catalogRoutes.POST("/order", c.StorefrontHandler.CreateOrder)
		catalogRoutes.POST("/verify", c.StorefrontHandler.Verify)
	}

	// Public pricing page
	v1.GET("/billing/pricing", c.BillingHandler.GetPricing)

	// Gateway webhook deliveries carry no user token; the handler
	// authenticates them against the endpoint secret instead.
	v1.POST("/billing/webhook", c.BillingHandler.Webhook, webhookRateLimiter.RateLimitMiddleware())

	// Protected routes (require JWT)
	protected := v1.Group("")
	protected.Use(custommiddleware.JWTAuth(cfg.JWTSecret))
	{
		billingGroup := protected.Group("/billing")
		{
			billingGroup.POST("/order", c.BillingHandler.CreateOrder)
			billingGroup.POST("/verify", c.BillingHandler.Verify)
			billingGroup.POST("/sync", c.BillingHandler.Sync)
			billingGroup.GET("/subscription", c.BillingHandler.GetSubscription)
			billingGroup.GET("/usage", c.BillingHandler.GetUsage)
		}

		adminGroup := protected.Group("/admin")
		adminGroup.Use(custommiddleware.RequireAdmin())
		{
			adminGroup.PUT("/users/:id/plan", c.AdminHandler.OverridePlan)
		}
	}

	// Start server
	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	c.Logger.Info("server starting",
		"address", address,
		"environment", cfg.APIEnvironment,
		"rate_limit_per_minute", cfg.RateLimitRequestsPerMinute,
	)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	c.Logger.Info("shutting down server")
	c.CronManager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	c.Logger.Info("server stopped")
}
