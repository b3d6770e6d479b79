package configcache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

// Cache holds the current snapshot. Refresh swaps it as a whole.
type Cache struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock

	current atomic.Pointer[Snapshot]
}

func New(p Params) (*Cache, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil {
		return nil, domain.ErrInvalidConfig
	}
	return &Cache{
		db:    p.DB,
		log:   p.Log.Named("configcache").With(zap.String("component", "configcache")),
		clock: p.Clock,
	}, nil
}

// Refresh loads a new snapshot. On failure the previous snapshot stays in place.
func (c *Cache) Refresh(ctx context.Context) error {
	started := c.clock.Now()
	snap, err := Load(ctx, c.db, started)
	if err != nil {
		c.log.Error("configcache.refresh.failed", zap.Error(err))
		return err
	}
	c.current.Store(snap)
	c.log.Info("configcache.refreshed",
		zap.Int("confs", len(snap.Confs)),
		zap.Int("offer_groups", len(snap.Offers)),
		zap.Int("price_group_rules", len(snap.PriceGroups)),
		zap.Int("free_months", len(snap.FreeMonths)),
		zap.Int("special_months", len(snap.SpecialMonths)),
		zap.Int64("duration_ms", time.Since(started).Milliseconds()),
	)
	return nil
}

// Current returns the active snapshot, loading it on first use.
func (c *Cache) Current(ctx context.Context) (*Snapshot, error) {
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, err
	}
	snap := c.current.Load()
	if snap == nil {
		return nil, domain.ErrSnapshotNotLoaded
	}
	return snap, nil
}
