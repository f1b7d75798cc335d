package fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/cache"
	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/extract"
	"catalog-feed-miner/internal/feed"
	"catalog-feed-miner/internal/fetcher"
	"catalog-feed-miner/internal/imagecheck"
	"catalog-feed-miner/internal/listing"
	"catalog-feed-miner/internal/pipeline"
	"catalog-feed-miner/internal/runstore"
)

// Module needs the sqlite ledger module; postgres and redis are optional.
var Module = fx.Module(
	"pipeline",
	fx.Provide(
		newFetcher,
		newExtractor,
		listing.NewFromConfig,
		imagecheck.NewFromConfig,
		newFeedWriter,
		runstore.NewRunStore,
		NewDriver,
	),
)

type fetcherParams struct {
	fx.In

	Cfg       *config.Config
	PageCache *cache.PageCache `optional:"true"`
	Logger    *zap.SugaredLogger
}

func newFetcher(p fetcherParams) *fetcher.Fetcher {
	var pc fetcher.PageCache
	if p.PageCache.Enabled() {
		pc = p.PageCache
	}
	return fetcher.NewFromConfig(p.Cfg, pc, p.Logger)
}

func newExtractor(cfg *config.Config) *extract.Extractor {
	return extract.New(extract.OptionsFromConfig(cfg))
}

func newFeedWriter(cfg *config.Config, images *imagecheck.Validator, logger *zap.SugaredLogger) *feed.Writer {
	return feed.NewWriterFromConfig(cfg, images, logger)
}

type DriverParams struct {
	fx.In

	Cfg       *config.Config
	Fetcher   *fetcher.Fetcher
	Extractor *extract.Extractor
	Crawler   *listing.Crawler
	Writer    *feed.Writer
	Store     *runstore.RunStore
	Logger    *zap.SugaredLogger
}

func NewDriver(p DriverParams) *pipeline.Driver {
	return pipeline.New(pipeline.Options{
		ListingURL:   p.Cfg.Site.ListingURL,
		ProbeURLs:    p.Cfg.Crawl.ProbeURLs,
		ManifestPath: p.Cfg.Crawl.ManifestPath,
		BatchSize:    p.Cfg.Feed.BatchSize,
		Delay:        p.Cfg.Fetch.RequestDelay,
		Jitter:       p.Cfg.Fetch.RequestJitter,
	}, pipeline.Deps{
		Fetcher:   p.Fetcher,
		Extractor: p.Extractor,
		Crawler:   p.Crawler,
		Writer:    p.Writer,
		Store:     p.Store,
		Logger:    p.Logger,
	})
}
