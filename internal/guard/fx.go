package guard

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("guard",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Clock  clock.Clock
	Log    *zap.Logger
	Redis  *redis.Client `optional:"true"`
}

// New picks the registry backend from GUARD_BACKEND.
func New(p Params) (Registry, error) {
	cfg := p.Config.Guard
	if p.Log != nil {
		p.Log.Named("guard").Info("guard backend selected", zap.String("backend", cfg.Backend))
	}
	if cfg.Backend == config.GuardBackendRedis {
		return NewRedisRegistry(p.Redis, cfg.LockKey, cfg.LockTTL)
	}
	return NewDBRegistry(p.DB, p.Clock, cfg.Component)
}
