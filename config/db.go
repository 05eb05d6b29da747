package config

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDB opens the database named by the environment. MySQL is the
// default; DB_DRIVER=sqlite is what the test suite uses (in-memory DSN).
func ConnectDB() *gorm.DB {
	cfg := &gorm.Config{Logger: logger.Discard}

	var (
		db  *gorm.DB
		err error
	)
	switch Getenv("DB_DRIVER", "mysql") {
	case "sqlite":
		dsn := Getenv("DB_DSN", "file::memory:?cache=shared&_busy_timeout=10000")
		db, err = gorm.Open(sqlite.Open(dsn), cfg)
		if err == nil {
			// sqlite cannot take concurrent writers; one connection
			// avoids table-lock errors from the pool.
			if sqlDB, derr := db.DB(); derr == nil {
				sqlDB.SetMaxOpenConns(1)
			}
		}
	default:
		dsn := Getenv("DB_DSN", fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			Getenv("DB_USER", "admin"),
			Getenv("DB_PASS", "12345678"),
			Getenv("DB_HOST", "127.0.0.1"),
			Getenv("DB_PORT", "3306"),
			Getenv("DB_NAME", "jackstackgo"),
		))
		db, err = gorm.Open(mysql.Open(dsn), cfg)
	}
	if err != nil {
		panic("Failed to connect to database")
	}
	return db
}
