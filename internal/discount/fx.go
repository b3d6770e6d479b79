package discount

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/configcache"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/evaluation"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/granting"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/lifecycle"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("discount",
	fx.Provide(repository.Provide),
	configcache.Module,
	evaluation.Module,
	granting.Module,
	lifecycle.Module,
)
