package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-campus-reservation/internal/pkg/logger"
)

// RunMigrations はデータベースマイグレーションを実行する
func RunMigrations(db *sql.DB, migrationsPath string) error {
	m, err := newMigrate(db, migrationsPath)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("マイグレーション実行エラー: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("マイグレーションバージョン取得エラー: %w", err)
	}
	if dirty {
		return fmt.Errorf("マイグレーションが途中で失敗した状態です (version=%d)", version)
	}
	logger.Info("マイグレーション完了", zap.Uint("version", version))
	return nil
}

func newMigrate(db *sql.DB, migrationsPath string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("マイグレーションドライバー作成エラー: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://"+migrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("マイグレーションインスタンス作成エラー: %w", err)
	}
	return m, nil
}
