package migration

import (
	"github.com/smallbiznis/invoray/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		// The embedded migrations target postgres. Other dialects (sqlite
		// in tests, mysql) manage schema out of band.
		if cfg.DBType != "postgres" {
			log.Info("skipping migrations", zap.String("database_type", cfg.DBType))
			return nil
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
