package main

import (
	"github.com/amrherek/OJO-DynamicDiscount/internal/billingadjustment"
	"github.com/amrherek/OJO-DynamicDiscount/internal/clock"
	"github.com/amrherek/OJO-DynamicDiscount/internal/config"
	"github.com/amrherek/OJO-DynamicDiscount/internal/coordinator"
	"github.com/amrherek/OJO-DynamicDiscount/internal/discount"
	"github.com/amrherek/OJO-DynamicDiscount/internal/guard"
	"github.com/amrherek/OJO-DynamicDiscount/internal/migration"
	"github.com/amrherek/OJO-DynamicDiscount/internal/observability"
	"github.com/amrherek/OJO-DynamicDiscount/internal/processing"
	"github.com/amrherek/OJO-DynamicDiscount/internal/redis"
	"github.com/amrherek/OJO-DynamicDiscount/internal/request"
	"github.com/amrherek/OJO-DynamicDiscount/internal/scheduler"
	"github.com/amrherek/OJO-DynamicDiscount/internal/server"
	"github.com/amrherek/OJO-DynamicDiscount/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		migration.Module,

		guard.Module,
		request.Module,
		discount.Module,
		billingadjustment.Module,
		processing.Module,
		coordinator.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
