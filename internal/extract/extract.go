package extract

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/product"
)

var (
	ErrMissingTitle = errors.New("extract: no title found")
	ErrMissingPrice = errors.New("extract: no price found")
)

type Options struct {
	Currency             string
	DefaultBrand         string
	DefaultPrice         string
	PriceFallbackEnabled bool
	// PlaceholderImage is used when no image tier yields a candidate.
	PlaceholderImage string
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Currency:             cfg.Site.Currency,
		DefaultBrand:         cfg.Site.DefaultBrand,
		DefaultPrice:         cfg.Site.DefaultPrice,
		PriceFallbackEnabled: cfg.Site.PriceFallbackEnabled,
		PlaceholderImage:     cfg.Image.PlaceholderURL,
	}
}

// Extractor turns a product page into a product.Record. It holds no per-page
// state and is safe to reuse.
type Extractor struct {
	opts          Options
	pricePatterns []*regexp.Regexp
}

func New(opts Options) *Extractor {
	return &Extractor{
		opts:          opts,
		pricePatterns: markupPricePatterns(opts.Currency),
	}
}

func markupPricePatterns(currency string) []*regexp.Regexp {
	const amount = `([0-9][0-9,]*(?:\.[0-9]+)?)`
	var out []*regexp.Regexp
	if currency != "" {
		cur := regexp.QuoteMeta(currency)
		out = append(out,
			regexp.MustCompile(cur+`\s*`+amount),
			regexp.MustCompile(amount+`\s*`+cur),
		)
	}
	return append(out,
		regexp.MustCompile(`"price"\s*:\s*"?([0-9]+(?:\.[0-9]+)?)`),
		regexp.MustCompile(`Dhs?\.?\s*`+amount),
	)
}

var titleStrategies = []strategy{
	textOf("h1.product-title"),
	textOf(".product-details h1"),
	textOf("h1.product_title"),
	textOf(".product-title"),
	contentOrText("[itemprop=name]"),
	textOf("h1"),
	textOf("title"),
}

var priceSelectors = []string{
	".product-price",
	".price",
	"[itemprop=price]",
	".product__price",
	".price-item--regular",
	".woocommerce-Price-amount",
	`meta[property="product:price:amount"]`,
}

var descriptionStrategies = []strategy{
	textOf(".product-description"),
	textOf(".description"),
	contentOrText("[itemprop=description]"),
	textOf(".product__description"),
	attrOf("meta[name=description]", "content"),
	attrOf(`meta[property="og:description"]`, "content"),
}

var brandStrategies = []strategy{
	attrOf(`meta[property="og:brand"]`, "content"),
	attrOf("meta[name=brand]", "content"),
	attrOf(`meta[property="product:brand"]`, "content"),
	textOf(".brand"),
	contentOrText("[itemprop=brand]"),
	jsonLDBrand,
}

// Extract builds the record for pageURL. It fails with ErrMissingTitle when no
// title resolves, and with ErrMissingPrice only when the default price is disabled.
func (e *Extractor) Extract(pageURL string, html []byte) (product.Record, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return product.Record{}, fmt.Errorf("parse page url %q: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return product.Record{}, fmt.Errorf("parse html for %s: %w", pageURL, err)
	}

	title := firstOf(doc, titleStrategies)
	if title == "" {
		return product.Record{}, fmt.Errorf("%s: %w", pageURL, ErrMissingTitle)
	}

	price, fallback := e.price(doc, html)
	if price == "" {
		return product.Record{}, fmt.Errorf("%s: %w", pageURL, ErrMissingPrice)
	}

	description := firstOf(doc, descriptionStrategies)
	if description == "" {
		description = title
	}

	brand := firstOf(doc, brandStrategies)
	if brand == "" {
		brand = e.opts.DefaultBrand
	}

	img := image(doc, page)
	if img == "" {
		img = e.opts.PlaceholderImage
	}

	return product.Record{
		ID:            RecordID(page),
		Title:         title,
		Description:   description,
		Price:         price,
		Currency:      e.opts.Currency,
		ImageLink:     img,
		Availability:  availability(doc),
		Condition:     product.ConditionNew,
		Link:          page.String(),
		Brand:         brand,
		PriceFallback: fallback,
	}, nil
}

func (e *Extractor) price(doc *goquery.Document, html []byte) (string, bool) {
	for _, sel := range priceSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr("content"); ok {
				found = product.NormalizePrice(v)
			}
			if found == "" {
				found = product.NormalizePrice(s.Text())
			}
			return found == ""
		})
		if found != "" {
			return found, false
		}
	}

	for _, re := range e.pricePatterns {
		if m := re.FindSubmatch(html); m != nil {
			if p := product.NormalizePrice(string(m[1])); p != "" {
				return p, false
			}
		}
	}

	if e.opts.PriceFallbackEnabled && e.opts.DefaultPrice != "" {
		return e.opts.DefaultPrice, true
	}
	return "", false
}

// RecordID derives the record id from the URL path: the last non-empty
// segment without its extension, else the preceding segment, else the host.
func RecordID(u *url.URL) string {
	var segs []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}
	for i := len(segs) - 1; i >= 0; i-- {
		seg := segs[i]
		if unescaped, err := url.PathUnescape(seg); err == nil {
			seg = unescaped
		}
		if id := strings.TrimSuffix(seg, path.Ext(seg)); id != "" {
			return id
		}
	}
	return u.Hostname()
}
