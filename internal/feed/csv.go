package feed

import (
	"encoding/csv"
	"fmt"
	"io"

	"catalog-feed-miner/internal/product"
)

var GoogleCSVHeader = []string{
	"id", "title", "description", "link", "image_link",
	"price", "currency", "availability", "condition", "brand",
}

var MetaCSVHeader = []string{
	"id", "title", "description", "availability", "condition",
	"price", "link", "image_link", "brand",
}

// WriteGoogleCSV writes the header and one row per record. Price and currency
// stay in separate columns.
func WriteGoogleCSV(w io.Writer, records []product.Record) error {
	return writeCSV(w, GoogleCSVHeader, records, func(r product.Record) []string {
		return []string{
			r.ID, r.Title, r.Description, r.Link, r.ImageLink,
			r.Price, r.Currency, string(r.Availability), r.Condition, r.Brand,
		}
	})
}

// WriteMetaCSV folds the currency into the price column.
func WriteMetaCSV(w io.Writer, records []product.Record) error {
	return writeCSV(w, MetaCSVHeader, records, func(r product.Record) []string {
		return []string{
			r.ID, r.Title, r.Description, string(r.Availability), r.Condition,
			r.PriceWithCurrency(), r.Link, r.ImageLink, r.Brand,
		}
	})
}

func writeCSV(w io.Writer, header []string, records []product.Record, row func(product.Record) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("write csv row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
