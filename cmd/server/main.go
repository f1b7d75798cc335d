package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	cachefx "catalog-feed-miner/cache/fx"
	dbfx "catalog-feed-miner/db/fx"
	enqueuefx "catalog-feed-miner/internal/app/amqp/enqueue/fx"
	feedsfx "catalog-feed-miner/internal/app/feeds/fx"
	appfx "catalog-feed-miner/internal/app/fx"
	healthfx "catalog-feed-miner/internal/app/health/fx"
	inngestfx "catalog-feed-miner/internal/app/inngest/fx"
	runsfx "catalog-feed-miner/internal/app/runs/fx"
	pipelinefx "catalog-feed-miner/internal/pipeline/fx"
	routerfx "catalog-feed-miner/internal/router/fx"
	serverfx "catalog-feed-miner/internal/server/fx"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		appfx.CoreAppOptions,
		dbfx.Module,
		dbfx.SQLiteModule,
		cachefx.Module,
		pipelinefx.Module,
		routerfx.CoreRouterOptions,
		serverfx.Module,
		healthfx.Module,
		feedsfx.Module,
		runsfx.Module,
		inngestfx.Module,
		enqueuefx.Module,
	)

	app.Run()
}
