// Package testutil 提供测试用的 SQLite 数据库和配置
package testutil

import (
	"path/filepath"
	"testing"

	"billexpress/internal/config"
	"billexpress/internal/infrastructure/database"

	"gorm.io/gorm"
)

// NewDB 在临时目录创建一个已迁移的 SQLite 库，测试结束时关闭
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")},
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// Config 默认配置，关闭定时巡检
func Config() *config.Config {
	cfg := config.Default()
	cfg.Business.SweepEnabled = false
	return cfg
}
