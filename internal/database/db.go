package database

import (
	"fmt"
	"strings"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres" // PostgreSQL dialect
	_ "github.com/mattn/go-sqlite3"              // SQLite driver

	"supplytrack/internal/config"
	"supplytrack/internal/models"
)

// Open connects to the configured database and applies pool settings.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.LogMode(cfg.LogMode)

	// Every connection to ":memory:" gets its own empty database.
	if cfg.Driver == "sqlite3" && strings.Contains(cfg.DSN, ":memory:") {
		db.DB().SetMaxOpenConns(1)
	} else {
		db.DB().SetMaxIdleConns(cfg.MaxIdleConns)
		db.DB().SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.DB().SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return db, nil
}

// Migrate creates or updates every table the service uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Node{},
		&models.ItemType{},
		&models.ItemInstance{},
		&models.Recipe{},
		&models.RecipeIngredient{},
		&models.ItemTransit{},
		&models.QRCode{},
		&models.Report{},
	).Error
}
