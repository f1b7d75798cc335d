package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var galleryImageSelectors = []string{
	".product-image img",
	".product-gallery img",
	".product__media img",
	".woocommerce-product-gallery img",
	"[itemprop=image]",
}

var imageSourceAttrs = []string{"src", "data-src", "data-zoom-image", "srcset", "content"}

var rejectedImageHints = []string{"placeholder", "logo", "icon", "spinner"}

var productImageHints = []string{"product", "upload", "cdn/shop", "media"}

var imageTiers = []strategy{
	attrOf(`meta[property="og:image"]`, "content"),
	attrOf(`meta[name="twitter:image"]`, "content"),
	jsonLDImage,
	galleryImage,
	hintedImage,
}

// image resolves the first tier's candidate against the page URL.
func image(doc *goquery.Document, page *url.URL) string {
	raw := firstOf(doc, imageTiers)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return page.ResolveReference(ref).String()
}

func galleryImage(doc *goquery.Document) string {
	for _, sel := range galleryImageSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if src := imageSource(s); src != "" && usableImage(src) {
				found = src
			}
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func hintedImage(doc *goquery.Document) string {
	var found string
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := imageSource(s)
		if src == "" || !usableImage(src) {
			return true
		}
		lower := strings.ToLower(src)
		for _, hint := range productImageHints {
			if strings.Contains(lower, hint) {
				found = src
				return false
			}
		}
		return true
	})
	return found
}

// imageSource returns the first non-empty source attribute; for srcset only the
// first candidate URL is used.
func imageSource(s *goquery.Selection) string {
	for _, attr := range imageSourceAttrs {
		v := strings.TrimSpace(s.AttrOr(attr, ""))
		if v == "" {
			continue
		}
		if attr == "srcset" {
			first := strings.TrimSpace(strings.Split(v, ",")[0])
			if fields := strings.Fields(first); len(fields) > 0 {
				return fields[0]
			}
			continue
		}
		return v
	}
	return ""
}

func usableImage(src string) bool {
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "data:") {
		return false
	}
	if p := strings.SplitN(lower, "?", 2)[0]; strings.HasSuffix(p, ".svg") {
		return false
	}
	for _, hint := range rejectedImageHints {
		if strings.Contains(lower, hint) {
			return false
		}
	}
	return true
}
