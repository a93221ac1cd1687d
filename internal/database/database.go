// Package database owns the gorm connection and the persisted models.
package database

import (
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"melodyhub/internal/config"
	"melodyhub/internal/logger"
)

var (
	mu sync.RWMutex
	db *gorm.DB
)

// Connect opens the configured database and stores the shared handle.
func Connect(cfg config.DatabaseConfig) error {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.LogQueries {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var (
		conn *gorm.DB
		err  error
	)
	switch cfg.Type {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
		conn, err = gorm.Open(postgres.Open(dsn), gormCfg)
	case "sqlite", "":
		conn, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	default:
		return fmt.Errorf("unsupported database type %q", cfg.Type)
	}
	if err != nil {
		return fmt.Errorf("opening %s database: %w", cfg.Type, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("accessing sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	mu.Lock()
	db = conn
	mu.Unlock()

	logger.Info("database connected", "type", cfg.Type)
	return nil
}

// GetDB returns the shared database handle.
func GetDB() *gorm.DB {
	mu.RLock()
	defer mu.RUnlock()
	return db
}

// SetDB replaces the shared handle. Used by tests.
func SetDB(conn *gorm.DB) {
	mu.Lock()
	defer mu.Unlock()
	db = conn
}
