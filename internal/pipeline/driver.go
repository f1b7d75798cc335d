package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"catalog-feed-miner/db"
	"catalog-feed-miner/internal/feed"
	"catalog-feed-miner/internal/fetcher"
	"catalog-feed-miner/internal/listing"
	"catalog-feed-miner/internal/manifest"
	"catalog-feed-miner/internal/product"
)

// ErrNoInput means no candidate URL was found by any source. The run still
// writes empty feeds and does not report it as a failure.
var ErrNoInput = errors.New("pipeline: no candidate product urls (crawl, probes and manifest all empty)")

type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// forgetter is implemented by fetchers backed by a page cache.
type forgetter interface {
	Forget(ctx context.Context, url string)
}

type Extractor interface {
	Extract(pageURL string, html []byte) (product.Record, error)
}

type Crawler interface {
	Crawl(ctx context.Context, listingURL string) (listing.Result, error)
}

type FeedWriter interface {
	WriteAll(ctx context.Context, records []product.Record) (feed.Output, error)
	OutDir() string
}

type RunStore interface {
	SaveRun(ctx context.Context, r *Report) error
}

// Input selects the URLs of one run. Explicit URLs win; an explicit manifest
// path comes next; otherwise the configured listing, probes and manifest are
// tried in that order.
type Input struct {
	RunID        string   `json:"run_id,omitempty"`
	URLs         []string `json:"urls,omitempty"`
	ListingURL   string   `json:"listing_url,omitempty"`
	ManifestPath string   `json:"manifest_path,omitempty"`
}

type Options struct {
	ListingURL   string
	ProbeURLs    []string
	ManifestPath string
	BatchSize    int
	Delay        time.Duration
	Jitter       time.Duration
}

type Deps struct {
	Fetcher   Fetcher
	Extractor Extractor
	Crawler   Crawler
	Writer    FeedWriter
	Store     RunStore
	Logger    *zap.SugaredLogger

	// Sleep and JitterFn default to fetcher.SleepContext and fetcher.RandomJitter.
	Sleep    func(ctx context.Context, d time.Duration) error
	JitterFn func(max time.Duration) time.Duration
	Now      func() time.Time
}

// Driver runs the fetch, extract and serialize pipeline. Runs are serialized:
// one Driver executes at most one run at a time.
type Driver struct {
	opts Options
	deps Deps
	mu   sync.Mutex
}

func New(opts Options, deps Deps) *Driver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Sleep == nil {
		deps.Sleep = fetcher.SleepContext
	}
	if deps.JitterFn == nil {
		deps.JitterFn = fetcher.RandomJitter
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Driver{opts: opts, deps: deps}
}

// Run executes one feed run. Per-URL failures are recorded in the report and
// never abort the run. The returned error is set only for configuration
// failures (an unreadable manifest); empty feeds are written even then.
func (d *Driver) Run(ctx context.Context, in Input) (*Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rep := &Report{
		RunID:     in.RunID,
		StartedAt: d.deps.Now(),
		URLs:      []string{},
		Items:     []Item{},
	}
	if rep.RunID == "" {
		rep.RunID = uuid.NewString()
	}
	log := d.deps.Logger.With("run_id", rep.RunID)
	log.Infow("pipeline_run_start")

	urls, source, err := d.resolveURLs(ctx, in, rep, log)
	rep.Source = source
	if err != nil {
		rep.Err = err.Error()
		log.Errorw("pipeline_config_error", "err", err)
		d.finish(ctx, rep, nil, nil, log)
		return rep, err
	}

	rep.URLs = urls
	if len(urls) == 0 {
		rep.NoInput = true
		log.Warnw("pipeline_no_input", "err", ErrNoInput)
	}

	records, itemIdx := d.process(ctx, urls, rep, log)
	d.finish(ctx, rep, records, itemIdx, log)
	return rep, nil
}

func (d *Driver) resolveURLs(ctx context.Context, in Input, rep *Report, log *zap.SugaredLogger) ([]string, Source, error) {
	if len(in.URLs) > 0 {
		return dedupe(in.URLs), SourceExplicit, nil
	}
	if in.ManifestPath != "" {
		urls, err := manifest.ReadFile(in.ManifestPath)
		if err != nil {
			return nil, SourceManifest, err
		}
		return urls, SourceManifest, nil
	}

	listingURL := in.ListingURL
	if listingURL == "" {
		listingURL = d.opts.ListingURL
	}
	if listingURL != "" && d.deps.Crawler != nil {
		res, err := d.deps.Crawler.Crawl(ctx, listingURL)
		rep.Listing = res.Pages
		if err != nil {
			log.Warnw("pipeline_listing_crawl_failed", "listing_url", listingURL, "err", err)
		}
		if len(res.URLs) > 0 {
			log.Infow("pipeline_urls_from_listing", "listing_url", listingURL, "count", len(res.URLs), "pages", len(res.Pages))
			return res.URLs, SourceListing, nil
		}
	}

	if len(d.opts.ProbeURLs) > 0 {
		log.Infow("pipeline_urls_from_probes", "count", len(d.opts.ProbeURLs))
		return dedupe(d.opts.ProbeURLs), SourceProbe, nil
	}

	if d.opts.ManifestPath != "" {
		urls, err := manifest.ReadFile(d.opts.ManifestPath)
		if err != nil {
			return nil, SourceManifest, err
		}
		if len(urls) > 0 {
			log.Infow("pipeline_urls_from_manifest", "path", d.opts.ManifestPath, "count", len(urls))
			return urls, SourceManifest, nil
		}
	}

	return []string{}, SourceNone, nil
}

// process fetches and extracts every URL sequentially. itemIdx[i] is the index
// in rep.Items of the item that produced records[i].
func (d *Driver) process(ctx context.Context, urls []string, rep *Report, log *zap.SugaredLogger) ([]product.Record, []int) {
	var (
		records []product.Record
		itemIdx []int
	)
	batch := d.opts.BatchSize
	for i, u := range urls {
		if i%batch == 0 {
			end := min(i+batch, len(urls))
			log.Infow("pipeline_batch_start", "batch", i/batch+1, "from", i+1, "to", end, "total", len(urls))
		}
		if i > 0 {
			// cancellation only shortens the wait; remaining URLs still fail fast on ctx
			_ = d.deps.Sleep(ctx, d.opts.Delay+d.deps.JitterFn(d.opts.Jitter))
		}

		item := Item{URL: u}
		rec, ok := d.processOne(ctx, u, &item, log)
		rep.Items = append(rep.Items, item)
		if ok {
			records = append(records, rec)
			itemIdx = append(itemIdx, len(rep.Items)-1)
		}
	}
	return records, itemIdx
}

func (d *Driver) processOne(ctx context.Context, u string, item *Item, log *zap.SugaredLogger) (product.Record, bool) {
	body, err := d.deps.Fetcher.Fetch(ctx, u)
	if err != nil {
		item.Err = err.Error()
		log.Warnw("pipeline_url_fetch_failed", "url", u, "err", err)
		return product.Record{}, false
	}
	item.Fetched = true

	rec, err := d.deps.Extractor.Extract(u, body)
	if err != nil {
		item.Err = err.Error()
		log.Warnw("pipeline_url_extract_failed", "url", u, "err", err)
		d.forget(ctx, u)
		return product.Record{}, false
	}
	if err := product.Validate(rec); err != nil {
		item.Err = err.Error()
		log.Warnw("pipeline_record_invalid", "url", u, "err", err)
		d.forget(ctx, u)
		return product.Record{}, false
	}

	item.Extracted = true
	item.Title = rec.Title
	item.PriceFallback = rec.PriceFallback
	if rec.PriceFallback {
		log.Warnw("pipeline_price_fallback", "url", u, "price", rec.Price)
	}
	log.Infow("pipeline_url_extracted", "url", u, "title", rec.Title)
	return rec, true
}

// forget keeps a page that produced no record out of the cache.
func (d *Driver) forget(ctx context.Context, u string) {
	if f, ok := d.deps.Fetcher.(forgetter); ok {
		f.Forget(ctx, u)
	}
}

func (d *Driver) finish(ctx context.Context, rep *Report, records []product.Record, itemIdx []int, log *zap.SugaredLogger) {
	records, itemIdx, dups := dedupeRecords(records, itemIdx)
	rep.Duplicates = dups
	rep.Records = len(records)
	if records == nil {
		records = []product.Record{}
	}

	if d.deps.Writer != nil {
		out, err := d.deps.Writer.WriteAll(ctx, records)
		rep.Feeds = out.Feeds
		if err != nil {
			log.Errorw("pipeline_feed_write_failed", "err", err)
		}
		for i, res := range out.Images {
			if i >= len(itemIdx) {
				break
			}
			rep.Items[itemIdx[i]].ImageStatus = imageStatus(res.OK, res.Err)
		}
	}

	rep.FinishedAt = d.deps.Now()
	rep.Status = rep.resolveStatus()

	if d.deps.Writer != nil {
		if err := writeDebugReport(d.deps.Writer.OutDir(), rep); err != nil {
			log.Errorw("pipeline_debug_report_failed", "err", err)
		}
	}

	if d.deps.Store != nil {
		if err := d.deps.Store.SaveRun(ctx, rep); err != nil {
			if errors.Is(err, db.ErrSQLiteDisabled) {
				log.Infow("run_ledger_disabled_skip_persist")
			} else {
				log.Errorw("pipeline_run_save_failed", "err", err)
			}
		}
	}

	log.Infow("pipeline_run_done",
		"status", rep.Status,
		"source", rep.Source,
		"urls", len(rep.URLs),
		"records", rep.Records,
		"failures", rep.Failures(),
		"duplicates", rep.Duplicates,
		"took", rep.FinishedAt.Sub(rep.StartedAt).String(),
	)
}

func imageStatus(ok bool, err error) string {
	switch {
	case ok && err == nil:
		return ImageOK
	case ok:
		return ImageUnchecked
	default:
		return ImageReplaced
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// dedupeRecords keeps the first record per Link.
func dedupeRecords(records []product.Record, itemIdx []int) ([]product.Record, []int, int) {
	seen := make(map[string]struct{}, len(records))
	var (
		out  []product.Record
		idx  []int
		dups int
	)
	for i, r := range records {
		if _, ok := seen[r.Link]; ok {
			dups++
			continue
		}
		seen[r.Link] = struct{}{}
		out = append(out, r)
		idx = append(idx, itemIdx[i])
	}
	return out, idx, dups
}

// String is used by CLI output.
func (r *Report) String() string {
	return fmt.Sprintf("run %s %s: %d urls, %d records, %d failures", r.RunID, r.Status, len(r.URLs), r.Records, r.Failures())
}
