package request

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/request/repository"
	"github.com/amrherek/OJO-DynamicDiscount/internal/request/service"
	"go.uber.org/fx"
)

var Module = fx.Module("request.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
