package container

import (
	"time"

	"github.com/rahulmehra/vyaparhub/config"
	"github.com/rahulmehra/vyaparhub/pkg/api/handlers"
	"github.com/rahulmehra/vyaparhub/pkg/billing"
	"github.com/rahulmehra/vyaparhub/pkg/cache"
	"github.com/rahulmehra/vyaparhub/pkg/database"
	"github.com/rahulmehra/vyaparhub/pkg/entitlement"
	"github.com/rahulmehra/vyaparhub/pkg/gateway"
	"github.com/rahulmehra/vyaparhub/pkg/jobs"
	"github.com/rahulmehra/vyaparhub/pkg/logger"
	"github.com/rahulmehra/vyaparhub/pkg/metrics"
	"github.com/rahulmehra/vyaparhub/pkg/storefront"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger logger.Logger

	// Infrastructure
	DB      *database.Client
	Cache   *cache.Client
	Gateway gateway.Adapter
	Metrics *metrics.Metrics

	// Services
	BillingService     *billing.Service
	EntitlementService *entitlement.Service
	StorefrontService  *storefront.Service

	// Jobs
	CronManager *jobs.CronManager

	// Handlers
	AuthHandler       *handlers.AuthHandler
	BillingHandler    *handlers.BillingHandler
	StorefrontHandler *handlers.StorefrontHandler
	AdminHandler      *handlers.AdminHandler
}

// New creates and initializes all application dependencies
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Logger:  logger.New(cfg.LogLevel),
		Metrics: metrics.New(),
	}

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}

	c.initServices()
	c.initHandlers()

	c.Logger.Info("container initialized",
		"environment", cfg.APIEnvironment,
		"database", "connected",
		"cache", "connected")

	return c, nil
}

// initInfrastructure initializes database, cache and gateway connections
func (c *Container) initInfrastructure() error {
	var err error

	c.DB, err = database.NewClient(c.Config.DatabaseURL)
	if err != nil {
		c.Logger.Error("failed to connect to database", "error", err)
		return err
	}

	c.Cache, err = cache.NewClient(c.Config.RedisURL)
	if err != nil {
		c.Logger.Error("failed to connect to cache", "error", err)
		return err
	}

	// RazorpaySubscriptions also serves one-time orders; the recurring
	// fetch is only exercised by legacy mandate-based subscriptions.
	c.Gateway = gateway.NewRazorpaySubscriptions(gateway.Config{
		KeyID:     c.Config.GatewayKeyID,
		KeySecret: c.Config.GatewayKeySecret,
		Timeout:   time.Duration(c.Config.GatewayTimeoutSeconds) * time.Second,
	})

	return nil
}

// initServices initializes all domain services
func (c *Container) initServices() {
	c.BillingService = billing.NewService(c.DB.DB, c.Gateway, c.Cache, c.Logger)
	c.EntitlementService = entitlement.NewService(c.DB.DB)
	c.EntitlementService.SetDenialCounter(c.Metrics.EntitlementDenials)
	c.StorefrontService = storefront.NewService(c.DB.DB, c.Gateway, c.Logger)

	c.CronManager = jobs.NewCronManager(
		c.BillingService,
		c.StorefrontService,
		c.Metrics,
		c.Config.OrderRetentionDays,
		c.Logger,
	)
}

// initHandlers initializes all HTTP handlers
func (c *Container) initHandlers() {
	c.AuthHandler = handlers.NewAuthHandler(c.DB, c.Config)
	c.BillingHandler = handlers.NewBillingHandler(c.BillingService, c.EntitlementService, c.Metrics, c.Config.GatewayWebhookSecret)
	c.StorefrontHandler = handlers.NewStorefrontHandler(c.StorefrontService, c.Metrics)
	c.AdminHandler = handlers.NewAdminHandler(c.BillingService, c.Logger)
}

// Close releases infrastructure resources
func (c *Container) Close() {
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			c.Logger.Error("failed to close cache", "error", err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.Logger.Error("failed to close database", "error", err)
		}
	}
}
