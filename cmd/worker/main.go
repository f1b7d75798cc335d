package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	cachefx "catalog-feed-miner/cache/fx"
	dbfx "catalog-feed-miner/db/fx"
	runworkerfx "catalog-feed-miner/internal/app/amqp/runworker/fx"
	appfx "catalog-feed-miner/internal/app/fx"
	pipelinefx "catalog-feed-miner/internal/pipeline/fx"
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
		runworkerfx.Module,
	)

	app.Run()
}
