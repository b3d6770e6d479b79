package configcache

import "go.uber.org/fx"

var Module = fx.Module("discount.configcache",
	fx.Provide(New),
)
