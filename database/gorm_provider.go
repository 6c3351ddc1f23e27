package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GormProvider GORM 数据库提供者实现
type GormProvider struct {
	db     *gorm.DB
	dbType string
}

// NewGormProvider 按配置创建数据库提供者
func NewGormProvider(cfg *config.Config) (*GormProvider, error) {
	db, err := NewDB(cfg)
	if err != nil {
		return nil, err
	}

	dbType := cfg.DBType
	if dbType == "" {
		dbType = "sqlite"
	}
	return &GormProvider{db: db, dbType: dbType}, nil
}

// NewMemoryProvider 创建已迁移的内存 SQLite，每次调用得到独立的库
func NewMemoryProvider() (*GormProvider, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := OpenSQLite(dsn)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// 共享缓存模式下多连接会触发表锁
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate memory database: %w", err)
	}
	return &GormProvider{db: db, dbType: "sqlite"}, nil
}

// DB 返回底层 *gorm.DB 实例
func (p *GormProvider) DB() *gorm.DB {
	return p.db
}

// WithContext 返回带上下文的 *gorm.DB
func (p *GormProvider) WithContext(ctx context.Context) *gorm.DB {
	return p.db.WithContext(ctx)
}

// Transaction 在事务中执行函数
func (p *GormProvider) Transaction(fn TxFunc) error {
	return p.db.Transaction(fn)
}

// TransactionWithContext 带上下文的事务执行
func (p *GormProvider) TransactionWithContext(ctx context.Context, fn TxFunc) error {
	return p.db.WithContext(ctx).Transaction(fn)
}

// AutoMigrate 自动迁移数据库结构，未指定模型时迁移全部业务模型
func (p *GormProvider) AutoMigrate(dst ...interface{}) error {
	if len(dst) == 0 {
		dst = models.All()
	}

	log.Info("Running database auto migration...")
	if err := p.db.AutoMigrate(dst...); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}
	log.Info("Database auto migration completed")
	return nil
}

// SQLDB 返回底层 sql.DB
func (p *GormProvider) SQLDB() (*sql.DB, error) {
	return p.db.DB()
}

// Ping 检查数据库连接
func (p *GormProvider) Ping() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close 关闭数据库连接
func (p *GormProvider) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	log.Info("Closing database connection...")
	return sqlDB.Close()
}

// Name 返回数据库名称
func (p *GormProvider) Name() string {
	return p.dbType
}
