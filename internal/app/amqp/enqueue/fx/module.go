package fx

import (
	"go.uber.org/fx"

	"catalog-feed-miner/internal/app/amqp/enqueue"
	"catalog-feed-miner/internal/pkg/amqpclient"
	"catalog-feed-miner/internal/router"
)

var Module = fx.Options(
	fx.Provide(
		amqpclient.NewAMQP,
	),
	router.AsRoute(enqueue.NewHandler),
)
