package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"catalog-feed-miner/cache"
	"catalog-feed-miner/config"
)

// maxBodyBytes bounds a single page read.
const maxBodyBytes = 16 << 20

// Error is returned once every attempt for a URL has failed.
type Error struct {
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s failed after %d attempt(s): status %d: %v", e.URL, e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var errStatus = errors.New("unexpected status")

// PageCache stores fetched bodies by URL. Implementations may be nil-safe no-ops.
type PageCache interface {
	Get(ctx context.Context, url string) ([]byte, bool, error)
	Set(ctx context.Context, url string, body []byte) error
}

type purger interface {
	Purge(ctx context.Context, url string) error
}

type Options struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestTimeout time.Duration
	UserAgent      string

	Client *http.Client
	Cache  PageCache
	Logger *zap.SugaredLogger

	// Jitter returns the random part of the delay before retry n (1-based).
	Jitter func(base time.Duration) time.Duration
	// Sleep waits between attempts; it must honor ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

type Fetcher struct {
	maxRetries     int
	retryBaseDelay time.Duration
	requestTimeout time.Duration
	userAgent      string

	client *http.Client
	cache  PageCache
	logger *zap.SugaredLogger
	jitter func(base time.Duration) time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(opts Options) *Fetcher {
	f := &Fetcher{
		maxRetries:     opts.MaxRetries,
		retryBaseDelay: opts.RetryBaseDelay,
		requestTimeout: opts.RequestTimeout,
		userAgent:      strings.TrimSpace(opts.UserAgent),
		client:         opts.Client,
		cache:          opts.Cache,
		logger:         opts.Logger,
		jitter:         opts.Jitter,
		sleep:          opts.Sleep,
	}
	if f.maxRetries < 1 {
		f.maxRetries = 3
	}
	if f.requestTimeout <= 0 {
		f.requestTimeout = 30 * time.Second
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.logger == nil {
		f.logger = zap.NewNop().Sugar()
	}
	if f.jitter == nil {
		f.jitter = RandomJitter
	}
	if f.sleep == nil {
		f.sleep = SleepContext
	}
	return f
}

// NewFromConfig wires a Fetcher from the deployment config.
func NewFromConfig(cfg *config.Config, cache PageCache, logger *zap.SugaredLogger) *Fetcher {
	return New(Options{
		MaxRetries:     cfg.Fetch.MaxRetries,
		RetryBaseDelay: cfg.Fetch.RetryBaseDelay,
		RequestTimeout: cfg.Fetch.RequestTimeout,
		UserAgent:      cfg.Fetch.UserAgent,
		Cache:          cache,
		Logger:         logger,
	})
}

// Forget drops rawURL from the page cache so the next run refetches it.
func (f *Fetcher) Forget(ctx context.Context, rawURL string) {
	p, ok := f.cache.(purger)
	if !ok {
		return
	}
	if err := p.Purge(ctx, rawURL); err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
		f.logger.Warnw("page_cache_purge_failed", "url", rawURL, "err", err)
	}
}

// Fetch GETs rawURL, retrying transport errors and non-2xx responses with an
// incremental jittered delay. The final failure is an *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.cache != nil {
		body, ok, err := f.cache.Get(ctx, rawURL)
		if err != nil {
			f.logger.Warnw("page_cache_get_failed", "url", rawURL, "err", err)
		} else if ok {
			f.logger.Debugw("page_cache_hit", "url", rawURL)
			return body, nil
		}
	}

	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 1; attempt <= f.maxRetries; attempt++ {
		body, status, err := f.get(ctx, rawURL)
		if err == nil {
			if f.cache != nil {
				if cerr := f.cache.Set(ctx, rawURL, body); cerr != nil {
					f.logger.Warnw("page_cache_set_failed", "url", rawURL, "err", cerr)
				}
			}
			return body, nil
		}
		lastErr, lastStatus = err, status

		if ctx.Err() != nil {
			return nil, &Error{URL: rawURL, Attempts: attempt, StatusCode: lastStatus, Err: ctx.Err()}
		}
		if attempt == f.maxRetries {
			break
		}

		delay := f.retryBaseDelay*time.Duration(attempt) + f.jitter(f.retryBaseDelay)
		f.logger.Warnw("fetch_retry",
			"url", rawURL,
			"attempt", attempt,
			"status", status,
			"delay", delay,
			"err", err,
		)
		if serr := f.sleep(ctx, delay); serr != nil {
			return nil, &Error{URL: rawURL, Attempts: attempt, StatusCode: lastStatus, Err: serr}
		}
	}

	return nil, &Error{URL: rawURL, Attempts: f.maxRetries, StatusCode: lastStatus, Err: lastErr}
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, err
	}
	SetBrowserHeaders(req.Header, f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024*32))
		return nil, resp.StatusCode, fmt.Errorf("%w %s", errStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// SetBrowserHeaders applies the header set of a desktop browser navigation.
func SetBrowserHeaders(h http.Header, userAgent string) {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	h.Set("User-Agent", userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9,ar;q=0.8")
	h.Set("Cache-Control", "no-cache")
	h.Set("Pragma", "no-cache")
	h.Set("Upgrade-Insecure-Requests", "1")
}

// RandomJitter returns a uniform duration in [0, base).
func RandomJitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(base)))
}

// SleepContext sleeps for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
