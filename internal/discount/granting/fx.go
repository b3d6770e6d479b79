package granting

import "go.uber.org/fx"

var Module = fx.Module("discount.granting",
	fx.Provide(New),
)
