package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/fetcher"
	"catalog-feed-miner/internal/links"
)

const nextPageSelector = `a[rel=next], link[rel=next], .pagination .next a, a.next, a.view-more, a.load-more`

// Page is the outcome of one visited listing page.
type Page struct {
	URL   string
	Links int
	Stats links.Stats
	Err   error
}

type Result struct {
	URLs  []string
	Pages []Page
}

type Options struct {
	BaseURL        string
	MaxPages       int
	Delay          time.Duration
	RandomDelay    time.Duration
	RequestTimeout time.Duration
	UserAgent      string
	Logger         *zap.SugaredLogger
}

// Crawler walks a listing page and its server-side pagination, handing every
// page body to the link extractor.
type Crawler struct {
	opts Options
	host string
}

func New(opts Options) (*Crawler, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Hostname() == "" {
		return nil, fmt.Errorf("listing: invalid base url %q", opts.BaseURL)
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	return &Crawler{opts: opts, host: base.Hostname()}, nil
}

func NewFromConfig(cfg *config.Config, logger *zap.SugaredLogger) (*Crawler, error) {
	return New(Options{
		BaseURL:        cfg.Site.BaseURL,
		MaxPages:       cfg.Crawl.MaxListingPages,
		Delay:          cfg.Fetch.RequestDelay,
		RandomDelay:    cfg.Fetch.RequestJitter,
		RequestTimeout: cfg.Fetch.RequestTimeout,
		UserAgent:      cfg.Fetch.UserAgent,
		Logger:         logger,
	})
}

// Crawl visits listingURL and follows next-page links up to MaxPages. The
// returned error is set only when the first listing page could not be fetched;
// Result.URLs is then empty but non-nil.
func (c *Crawler) Crawl(ctx context.Context, listingURL string) (Result, error) {
	extractor, err := links.New(c.opts.BaseURL, listingURL)
	if err != nil {
		return Result{URLs: []string{}}, fmt.Errorf("listing: %w", err)
	}

	col := colly.NewCollector(
		colly.AllowedDomains(allowedDomains(c.host)...),
		colly.UserAgent(fetcher.DefaultUserAgent),
		colly.StdlibContext(ctx),
	)
	if c.opts.RequestTimeout > 0 {
		col.SetRequestTimeout(c.opts.RequestTimeout)
	}
	if err := col.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       c.opts.Delay,
		RandomDelay: c.opts.RandomDelay,
	}); err != nil {
		return Result{URLs: []string{}}, fmt.Errorf("listing: limit rule: %w", err)
	}

	var (
		mu        sync.Mutex
		seen      = map[string]struct{}{}
		res       = Result{URLs: []string{}}
		requested = 1
	)

	col.OnRequest(func(r *colly.Request) {
		fetcher.SetBrowserHeaders(*r.Headers, c.opts.UserAgent)
	})

	col.OnResponse(func(r *colly.Response) {
		found, stats := extractor.ExtractWithStats(r.Body)
		mu.Lock()
		defer mu.Unlock()
		for _, u := range found {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			res.URLs = append(res.URLs, u)
		}
		res.Pages = append(res.Pages, Page{URL: r.Request.URL.String(), Links: len(found), Stats: stats})
		c.opts.Logger.Infow("listing_page_crawled",
			"url", r.Request.URL.String(),
			"links", len(found),
			"cards", stats.Cards,
			"patterns", stats.Patterns,
			"images", stats.Images,
		)
	})

	col.OnHTML(nextPageSelector, func(e *colly.HTMLElement) {
		href := strings.TrimSpace(e.Attr("href"))
		if href == "" || requested >= c.opts.MaxPages {
			return
		}
		err := e.Request.Visit(href)
		var visited *colly.AlreadyVisitedError
		switch {
		case err == nil:
			requested++
		case !errors.As(err, &visited):
			c.opts.Logger.Debugw("listing_next_page_skipped", "href", href, "err", err)
		}
	})

	col.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.Pages = append(res.Pages, Page{URL: r.Request.URL.String(), Err: err})
		c.opts.Logger.Warnw("listing_page_failed", "url", r.Request.URL.String(), "status", r.StatusCode, "err", err)
	})

	visitErr := col.Visit(listingURL)
	col.Wait()

	sort.Strings(res.URLs)

	if visitErr != nil {
		return res, fmt.Errorf("listing: visit %s: %w", listingURL, visitErr)
	}
	if len(res.Pages) > 0 && res.Pages[0].Err != nil {
		return res, fmt.Errorf("listing: fetch %s: %w", listingURL, res.Pages[0].Err)
	}
	return res, nil
}

// allowedDomains admits the base host and its www. twin.
func allowedDomains(host string) []string {
	host = strings.ToLower(host)
	if bare, ok := strings.CutPrefix(host, "www."); ok {
		return []string{bare, host}
	}
	return []string{host, "www." + host}
}
