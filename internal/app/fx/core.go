package fx

import (
	"go.uber.org/fx"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/logs"
)

// CoreAppOptions provides config and logging to every binary.
var CoreAppOptions = fx.Options(
	fx.Provide(
		config.NewViper,
		config.NewConfig,
		logs.NewLogger,
		logs.NewSugaredLogger,
	),
	fx.Invoke(logs.RegisterLifecycle),
)
