package db

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTest opens a private in-memory database. Each call gets its own
// database so tests do not leak rows into each other.
func NewTest() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	// Idle connections are never reaped, so the shared-cache memory database
	// stays alive. The pool must allow more than one connection because
	// services query outside a transaction while one is open.
	sqlDB.SetMaxIdleConns(4)
	sqlDB.SetMaxOpenConns(4)

	return conn, nil
}
