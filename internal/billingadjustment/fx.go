package billingadjustment

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config config.Config
	Clock  clock.Clock
	Log    *zap.Logger
}

func New(p Params) Adjuster {
	log := p.Log.Named("billingadjustment")
	if p.Config.Grant.Mode == config.GrantModeTable {
		log.Info("billingadjustment.mode", zap.String("mode", config.GrantModeTable))
		return NewTableAdjuster(p.Config.Grant.Username, p.Clock)
	}
	log.Info("billingadjustment.mode",
		zap.String("mode", config.GrantModeProcedure),
		zap.String("statement", p.Config.Grant.Procedure),
	)
	return NewProcedureAdjuster(p.Config.Grant.Procedure)
}

var Module = fx.Module("billingadjustment",
	fx.Provide(New),
)
