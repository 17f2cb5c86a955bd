package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"academyCards/internal/config"
)

// 容器编排下 API/worker 可能先于 PostgreSQL 就绪，启动时按此节奏重试连接。
var connectBackoff = []time.Duration{0, time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}

// InitDatabase 连接 PostgreSQL、设置连接池并迁移卡片模板、人员与导出记录表。
func InitDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Prepare(db, cfg.Host); err != nil {
		return nil, err
	}
	return db, nil
}

// Prepare 等待连接可用后执行迁移；测试里对 sqlite 同样适用。
func Prepare(db *gorm.DB, target string) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("unwrap db: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	var pingErr error
	for _, wait := range connectBackoff {
		time.Sleep(wait)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		pingErr = sqlDB.PingContext(ctx)
		cancel()
		if pingErr == nil {
			break
		}
	}
	if pingErr != nil {
		return fmt.Errorf("ping database %s after %d attempts: %w", target, len(connectBackoff), pingErr)
	}

	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
