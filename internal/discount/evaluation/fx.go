package evaluation

import "go.uber.org/fx"

var Module = fx.Module("discount.evaluation",
	fx.Provide(New),
)
