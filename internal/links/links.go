package links

import (
	"bytes"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var cardSelectors = []string{
	".product-card a",
	".product-item a",
	".product a",
	".product-grid-item a",
	"li.product a",
	"[data-product-id] a",
	".grid-product a",
}

var imageContainerSelectors = []string{
	".product-card img",
	".product-item img",
	".product img",
	".product-grid-item img",
	"li.product img",
	"[data-product-id] img",
	".grid-product img",
	".products img",
}

var hrefPatterns = []string{"/product/", "/products/", "/collections/"}

// Stats counts the URLs each strategy contributed first.
type Stats struct {
	Cards    int
	Patterns int
	Images   int
}

type Extractor struct {
	base *url.URL
	// listing is host+path of the listing page; its pagination variants are skipped too.
	listing string
}

// New builds an Extractor resolving relative hrefs against baseURL. Links to
// listingURL (with any query) are never returned.
func New(baseURL, listingURL string) (*Extractor, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	e := &Extractor{base: base}
	if listingURL != "" {
		if abs, ok := e.resolve(listingURL); ok {
			e.listing = listingKey(abs)
		}
	}
	return e, nil
}

func listingKey(abs string) string {
	u, err := url.Parse(abs)
	if err != nil {
		return abs
	}
	return strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/")
}

// Extract returns the sorted, deduplicated product URLs found in a listing page.
func (e *Extractor) Extract(listingHTML []byte) []string {
	out, _ := e.ExtractWithStats(listingHTML)
	return out
}

func (e *Extractor) ExtractWithStats(listingHTML []byte) ([]string, Stats) {
	var stats Stats
	seen := map[string]struct{}{}
	out := []string{}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(listingHTML))
	if err != nil {
		return out, stats
	}

	add := func(href string, counter *int) {
		abs, ok := e.resolve(href)
		if !ok {
			return
		}
		if e.listing != "" && listingKey(abs) == e.listing {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
		*counter++
	}

	for _, sel := range cardSelectors {
		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			// cards also hold cart, wishlist and brand anchors
			if href, ok := a.Attr("href"); ok && matchesPattern(href) {
				add(href, &stats.Cards)
			}
		})
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if matchesPattern(href) {
			add(href, &stats.Patterns)
		}
	})

	for _, sel := range imageContainerSelectors {
		doc.Find(sel).Each(func(_ int, img *goquery.Selection) {
			if href, ok := img.Closest("a[href]").Attr("href"); ok {
				add(href, &stats.Images)
			}
		})
	}

	sort.Strings(out)
	return out, stats
}

func matchesPattern(href string) bool {
	path := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		path = u.Path
	}
	for _, p := range hrefPatterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}

func (e *Extractor) resolve(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, scheme) {
			return "", false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := e.base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
