package fx

import (
	"catalog-feed-miner/cache"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"redis",
	fx.Provide(
		cache.NewRedis,
		cache.NewPageCache,
	),
)
