package fx

import (
	"go.uber.org/fx"

	"catalog-feed-miner/internal/app/feeds"
	"catalog-feed-miner/internal/router"
)

var Module = fx.Module(
	"feeds",
	router.AsRoute(feeds.NewHandler),
)
