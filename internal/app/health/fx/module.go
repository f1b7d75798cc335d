package fx

import (
	"go.uber.org/fx"

	"catalog-feed-miner/internal/app/health"
	"catalog-feed-miner/internal/router"
)

var Module = fx.Options(
	router.AsRoute(health.NewHandler),
)
