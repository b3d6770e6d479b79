package migration

import (
	"context"

	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/seed"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply migrates the schema on postgres and seeds the process registry row
// for the configured component.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	log = log.Named("migration")
	if db.IsPostgres(conn) {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		version, err := Up(sqlDB)
		if err != nil {
			return err
		}
		log.Info("migration.applied", zap.Uint("version", version.Number))
	} else {
		log.Warn("migration.skipped", zap.String("reason", "embedded migrations target postgres"), zap.String("dialect", conn.Dialector.Name()))
	}
	return seed.EnsureProcessRegistry(context.Background(), conn, cfg.Guard.Component)
}
