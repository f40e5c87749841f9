// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wfunc/changeling/logger"
	"github.com/wfunc/changeling/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	// GORM 日志写入 zap
	gl := gormlogger.New(
		zap.NewStdLog(logger.Log.Desugar()),
		gormlogger.Config{
			SlowThreshold: time.Second,
			LogLevel:      gormlogger.Warn,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn(host, port, user, password, dbname)), &gorm.Config{
		Logger: gl,
	})
	if err != nil {
		return nil, err
	}
	return NewGormFromDB(db)
}

// NewGormFromDB wraps an open connection and migrates the archive tables.
func NewGormFromDB(db *gorm.DB) (*GormPostgreSQL, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormGameRecord{}, &models.GormGamePlayer{}); err != nil {
		return nil, err
	}
	return &GormPostgreSQL{db: db}, nil
}

// SaveGameRecord 保存对局及其玩家
func (p *GormPostgreSQL) SaveGameRecord(ctx context.Context, rec models.GameRecord) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(models.NewGormGameRecord(rec)).Error
	})
}

// ListGameRecords 查询对局历史
func (p *GormPostgreSQL) ListGameRecords(ctx context.Context, roomID string, limit int) ([]models.GameRecord, error) {
	q := p.db.WithContext(ctx).Preload("Players").Order("created_at desc").Limit(clampLimit(limit))
	if roomID != "" {
		q = q.Where("room_id = ?", roomID)
	}
	var rows []models.GormGameRecord
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.GameRecord, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToRecord())
	}
	return out, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
