package db

import (
	"fmt"
	"time"

	"gosovereign/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 은 PostgreSQL 연결을 만들고 커넥션 풀과 스키마를 준비합니다.
func Open(dsn string, lg *zap.Logger) (*gorm.DB, error) {
	// 1. GORM을 사용하여 PostgreSQL 드라이버로 연결
	// TranslateError: unique 위반을 gorm.ErrDuplicatedKey 로 변환 (서브도메인 중복 판단 기준)
	database, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database (DB 연결 실패): %w", err)
	}

	// 2. Connection Pool(커넥션 풀) 설정
	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	lg.Info("Successfully connected to PostgreSQL database (PostgreSQL 연결 성공)")

	// 3. Auto Migration (자동 마이그레이션)
	if err := Migrate(database); err != nil {
		return nil, err
	}
	lg.Info("Database migration completed (마이그레이션 완료)")

	return database, nil
}

func Migrate(database *gorm.DB) error {
	err := database.AutoMigrate(
		&models.User{},
		&models.Store{},
		&models.DeploymentLog{},
		&models.Purchase{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}
