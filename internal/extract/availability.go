package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"catalog-feed-miner/internal/product"
)

var soldOutSelectors = []string{
	".sold-out",
	".out-of-stock",
	".stock.out-of-stock",
	".product-sold-out",
	"button[disabled].add-to-cart",
	"[data-availability=out-of-stock]",
}

var stockTextContainers = []string{
	".stock-status",
	".availability",
	".product-details",
	".product-info",
	".product__info-container",
}

// stockPhrases is checked in order against container text. Substring matching
// can hit unrelated marketing copy; the order keeps results stable.
var stockPhrases = []struct {
	phrase string
	status product.Availability
}{
	{"out of stock", product.OutOfStock},
	{"sold out", product.OutOfStock},
	{"unavailable", product.OutOfStock},
	{"currently unavailable", product.OutOfStock},
	{"in stock", product.InStock},
	{"available now", product.InStock},
	{"add to cart", product.InStock},
}

var schemaOutOfStock = []string{"OutOfStock", "SoldOut", "Discontinued"}

var schemaInStock = []string{"InStock", "PreOrder", "LimitedAvailability", "OnlineOnly"}

func availability(doc *goquery.Document) product.Availability {
	if a, ok := schemaAvailability(jsonLDAvailability(doc)); ok {
		return a
	}

	for _, sel := range soldOutSelectors {
		if doc.Find(sel).Length() > 0 {
			return product.OutOfStock
		}
	}

	for _, sel := range stockTextContainers {
		var (
			status product.Availability
			found  bool
		)
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.ToLower(clean(s.Text()))
			for _, p := range stockPhrases {
				if strings.Contains(text, p.phrase) {
					status, found = p.status, true
					return false
				}
			}
			return true
		})
		if found {
			return status
		}
	}

	return product.InStock
}

// schemaAvailability maps a schema.org ItemAvailability token or URL.
func schemaAvailability(v string) (product.Availability, bool) {
	if v == "" {
		return "", false
	}
	token := v[strings.LastIndex(v, "/")+1:]
	for _, t := range schemaOutOfStock {
		if strings.EqualFold(token, t) {
			return product.OutOfStock, true
		}
	}
	for _, t := range schemaInStock {
		if strings.EqualFold(token, t) {
			return product.InStock, true
		}
	}
	return "", false
}
