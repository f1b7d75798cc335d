package fx

import (
	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/app/inngest"
	"catalog-feed-miner/internal/app/inngest/feedrun"
	pkginngest "catalog-feed-miner/internal/pkg/inngest"
	"catalog-feed-miner/internal/router"

	"github.com/inngest/inngestgo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Options(
	fx.Provide(
		pkginngest.NewInngestClient,
		feedrun.NewFunction,
	),
	fx.Invoke(registerFunctions),
	router.AsRoute(inngest.NewInngestHandler),
)

func registerFunctions(
	cfg *config.Config,
	client inngestgo.Client,
	fn *feedrun.Function,
	logger *zap.SugaredLogger,
) error {
	if !pkginngest.Enabled(cfg) {
		logger.Infow("inngest_disabled", "reason", "missing INNGEST_APP_ID")
		return nil
	}

	_, err := inngestgo.CreateFunction(
		client,
		inngestgo.FunctionOpts{
			ID:      feedrun.FunctionID,
			Retries: inngestgo.IntPtr(0),
		},
		inngestgo.EventTrigger(feedrun.RunRequestedEventName, nil),
		fn.Handle,
	)
	if err != nil {
		logger.Errorw("inngest_function_create_failed",
			"function", feedrun.FunctionID,
			"err", err,
		)
		return err
	}

	logger.Infow("inngest_enabled",
		"path", pkginngest.ServePath(cfg),
		"event", feedrun.RunRequestedEventName,
	)
	return nil
}
