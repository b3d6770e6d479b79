package processing

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/evaluation"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/granting"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/lifecycle"
	"go.uber.org/fx"
)

var Module = fx.Module("processing",
	fx.Provide(
		func(s *evaluation.Service) Evaluator { return s },
		func(s *granting.Service) Granter { return s },
		func(r *lifecycle.Recorder) Recorder { return r },
	),
	fx.Provide(New),
)
