package lifecycle

import "go.uber.org/fx"

var Module = fx.Module("discount.lifecycle",
	fx.Provide(New),
)
