package migration

import (
	"github.com/smallbiznis/repairdesk/internal/config"
	"github.com/smallbiznis/repairdesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		dialect := db.MigrationDialect(cfg.DBType)
		if err := Apply(conn, dialect); err != nil {
			return err
		}
		log.Info("schema up to date", zap.String("dialect", dialect))
		return nil
	}),
)
