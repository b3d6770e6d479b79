package coordinator

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	"github.com/amrherek/OJO-DynamicDiscount/internal/processing"
	"go.uber.org/fx"
)

var Module = fx.Module("coordinator",
	fx.Provide(
		func(c *configcache.Cache) SnapshotSource { return c },
		func(b *processing.BatchProcessor) PackageProcessor { return b },
	),
	fx.Provide(New),
)
