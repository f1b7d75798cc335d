package imagecheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/fetcher"
	"catalog-feed-miner/internal/product"
)

var (
	ErrNotHTTPS    = errors.New("image url cannot be coerced to https")
	ErrStatus      = errors.New("image responded with non-2xx status")
	ErrContentType = errors.New("image content-type is not image/*")
)

// Error describes why an image URL was rejected or only optimistically accepted.
type Error struct {
	URL string
	// Optimistic is set when the check could not complete and the URL was kept.
	Optimistic bool
	Err        error
}

func (e *Error) Error() string {
	if e.Optimistic {
		return fmt.Sprintf("image %s accepted without check: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("image %s rejected: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Result of validating a single image URL. URL holds the corrected form even
// when OK is false, unless normalization failed.
type Result struct {
	OK  bool
	URL string
	Err error
}

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	FallbackURLs   []string
	PlaceholderURL string
	UserAgent      string
	Client         *http.Client
	Logger         *zap.SugaredLogger
}

type Validator struct {
	base        *url.URL
	timeout     time.Duration
	fallbacks   []string
	placeholder string
	userAgent   string
	client      *http.Client
	logger      *zap.SugaredLogger
}

func New(opts Options) (*Validator, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	v := &Validator{
		base:        base,
		timeout:     opts.Timeout,
		fallbacks:   opts.FallbackURLs,
		placeholder: opts.PlaceholderURL,
		userAgent:   opts.UserAgent,
		client:      opts.Client,
		logger:      opts.Logger,
	}
	if v.timeout <= 0 {
		v.timeout = 5 * time.Second
	}
	if v.client == nil {
		v.client = &http.Client{}
	}
	if v.logger == nil {
		v.logger = zap.NewNop().Sugar()
	}
	return v, nil
}

func NewFromConfig(cfg *config.Config, logger *zap.SugaredLogger) (*Validator, error) {
	return New(Options{
		BaseURL:        cfg.Site.BaseURL,
		Timeout:        cfg.Image.CheckTimeout,
		FallbackURLs:   cfg.Image.FallbackURLs,
		PlaceholderURL: cfg.Image.PlaceholderURL,
		UserAgent:      cfg.Fetch.UserAgent,
		Logger:         logger,
	})
}

// Normalize coerces raw into an absolute https URL. Absolute input only has
// its scheme rewritten. ok is false when that is impossible (empty input,
// other schemes, unparsable).
func (v *Validator) Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	switch {
	case strings.HasPrefix(raw, "//"):
		raw = "https:" + raw
	case strings.HasPrefix(strings.ToLower(raw), "http://"):
		raw = "https://" + raw[len("http://"):]
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		if ref.Scheme != "https" || ref.Host == "" {
			return "", false
		}
		// the remainder is kept exactly as written
		return "https" + raw[len(ref.Scheme):], true
	}
	abs := v.base.ResolveReference(ref)
	if abs.Scheme == "http" {
		abs.Scheme = "https"
	}
	if abs.Scheme != "https" || abs.Host == "" {
		return "", false
	}
	return abs.String(), true
}

// Validate normalizes raw and checks it with a HEAD request. A check that
// cannot complete accepts the corrected URL.
func (v *Validator) Validate(ctx context.Context, raw string) Result {
	u, ok := v.Normalize(raw)
	if !ok {
		return Result{Err: &Error{URL: raw, Err: ErrNotHTTPS}}
	}

	reqCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, u, nil)
	if err != nil {
		return Result{URL: u, Err: &Error{URL: u, Err: err}}
	}
	fetcher.SetBrowserHeaders(req.Header, v.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/*,*/*;q=0.8")

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{OK: true, URL: u, Err: &Error{URL: u, Optimistic: true, Err: err}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{URL: u, Err: &Error{URL: u, Err: fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)}}
	}
	if ct := strings.ToLower(resp.Header.Get("Content-Type")); !strings.HasPrefix(ct, "image/") {
		return Result{URL: u, Err: &Error{URL: u, Err: fmt.Errorf("%w: %q", ErrContentType, ct)}}
	}
	return Result{OK: true, URL: u}
}

// ValidateAll returns a copy of records whose ImageLink values passed
// validation, substituting the first validating fallback or, failing that,
// the placeholder. The input slice is not modified.
func (v *Validator) ValidateAll(ctx context.Context, records []product.Record) ([]product.Record, []Result) {
	out := make([]product.Record, len(records))
	copy(out, records)
	results := make([]Result, len(records))

	var (
		fallback         string
		fallbackResolved bool
	)
	resolveFallback := func() string {
		if fallbackResolved {
			return fallback
		}
		fallbackResolved = true
		for _, candidate := range v.fallbacks {
			if r := v.Validate(ctx, candidate); r.OK {
				fallback = r.URL
				return fallback
			}
		}
		fallback = v.placeholder
		return fallback
	}

	for i := range out {
		r := v.Validate(ctx, out[i].ImageLink)
		results[i] = r
		if r.OK {
			out[i].ImageLink = r.URL
			continue
		}
		out[i].ImageLink = resolveFallback()
		v.logger.Warnw("image_validation_failed",
			"link", out[i].Link,
			"image", records[i].ImageLink,
			"replacement", out[i].ImageLink,
			"err", r.Err,
		)
	}
	return out, results
}
