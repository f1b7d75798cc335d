package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type jsonNode = map[string]any

// productNode returns the first JSON-LD node typed Product, tolerating
// top-level arrays and @graph containers. Blocks that fail to parse are skipped.
func productNode(doc *goquery.Document) jsonNode {
	var found jsonNode
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var raw any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &raw); err != nil {
			return true
		}
		found = findProduct(raw)
		return found == nil
	})
	return found
}

func findProduct(v any) jsonNode {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if n := findProduct(item); n != nil {
				return n
			}
		}
	case map[string]any:
		if isProductType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isProductType(v any) bool {
	switch t := v.(type) {
	case string:
		return t == "Product" || strings.HasSuffix(t, "/Product")
	case []any:
		for _, item := range t {
			if isProductType(item) {
				return true
			}
		}
	}
	return false
}

// stringish unwraps a JSON-LD value that may be a string, the first of a
// list, or an object carrying key.
func stringish(v any, key string) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return stringish(t[0], key)
		}
	case map[string]any:
		if s, ok := t[key].(string); ok {
			return s
		}
	}
	return ""
}

func jsonLDImage(doc *goquery.Document) string {
	n := productNode(doc)
	if n == nil {
		return ""
	}
	return stringish(n["image"], "url")
}

func jsonLDBrand(doc *goquery.Document) string {
	n := productNode(doc)
	if n == nil {
		return ""
	}
	return stringish(n["brand"], "name")
}

func jsonLDAvailability(doc *goquery.Document) string {
	n := productNode(doc)
	if n == nil {
		return ""
	}
	offers := n["offers"]
	if list, ok := offers.([]any); ok {
		if len(list) == 0 {
			return ""
		}
		offers = list[0]
	}
	if o, ok := offers.(map[string]any); ok {
		return stringish(o["availability"], "@id")
	}
	return ""
}
