package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// strategy reads one candidate value from a parsed page, "" when absent.
type strategy func(*goquery.Document) string

// firstOf evaluates strategies in order and returns the first non-empty value.
func firstOf(doc *goquery.Document, strategies []strategy) string {
	for _, s := range strategies {
		if v := clean(s(doc)); v != "" {
			return v
		}
	}
	return ""
}

// clean NFC-normalizes s and collapses runs of whitespace.
func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

// textOf returns the text of the first element matching sel with non-blank text.
func textOf(sel string) strategy {
	return func(doc *goquery.Document) string {
		var out string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			out = clean(s.Text())
			return out == ""
		})
		return out
	}
}

// attrOf returns attr of the first element matching sel with a non-blank value.
func attrOf(sel, attr string) strategy {
	return func(doc *goquery.Document) string {
		var out string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr(attr)
			out = clean(v)
			return out == ""
		})
		return out
	}
}

// contentOrText prefers the content attribute (meta/microdata) over element text.
func contentOrText(sel string) strategy {
	return func(doc *goquery.Document) string {
		var out string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if v, ok := s.Attr("content"); ok && clean(v) != "" {
				out = clean(v)
			} else {
				out = clean(s.Text())
			}
			return out == ""
		})
		return out
	}
}
