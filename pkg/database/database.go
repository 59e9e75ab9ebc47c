package database

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rahulmehra/vyaparhub/pkg/models"
)

// Client holds the database handle
type Client struct {
	DB *gorm.DB
}

// NewClient opens a Postgres connection and applies migrations
func NewClient(databaseURL string) (*Client, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to postgres: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return &Client{DB: db}, nil
}

// Migrate applies the schema for all entities
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Shop{},
		&models.Customer{},
		&models.Invoice{},
		&models.Product{},
		&models.Subscription{},
		&models.PendingPaymentOrder{},
		&models.CatalogOrder{},
	); err != nil {
		return fmt.Errorf("failed running migrations: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks if the database is reachable
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
