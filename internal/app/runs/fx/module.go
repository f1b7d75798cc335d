package fx

import (
	"go.uber.org/fx"

	"catalog-feed-miner/internal/app/runs"
	"catalog-feed-miner/internal/router"
)

var Module = fx.Module(
	"runs",
	router.AsRoute(runs.NewGetByIDHandler),
)
