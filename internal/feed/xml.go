package feed

import (
	"encoding/xml"
	"fmt"
	"io"

	"catalog-feed-miner/internal/product"
)

const GoogleNamespace = "http://base.google.com/ns/1.0"

// Channel is the RSS channel metadata of the Google feed.
type Channel struct {
	Title       string
	Link        string
	Description string
}

type googleRSS struct {
	XMLName xml.Name      `xml:"rss"`
	Version string        `xml:"version,attr"`
	XmlnsG  string        `xml:"xmlns:g,attr"`
	Channel googleChannel `xml:"channel"`
}

type googleChannel struct {
	Title       string       `xml:"title"`
	Link        string       `xml:"link"`
	Description string       `xml:"description"`
	Items       []googleItem `xml:"item"`
}

type googleItem struct {
	ID           string `xml:"g:id"`
	Title        string `xml:"title"`
	Description  string `xml:"description"`
	Link         string `xml:"link"`
	ImageLink    string `xml:"g:image_link"`
	Price        string `xml:"g:price"`
	Availability string `xml:"g:availability"`
	Condition    string `xml:"g:condition"`
	Brand        string `xml:"g:brand"`
}

type metaFeed struct {
	XMLName xml.Name   `xml:"feed"`
	Items   []metaItem `xml:"item"`
}

type metaItem struct {
	ID           string `xml:"id"`
	Title        string `xml:"title"`
	Description  string `xml:"description"`
	Link         string `xml:"link"`
	ImageLink    string `xml:"image_link"`
	Price        string `xml:"price"`
	Availability string `xml:"availability"`
	Condition    string `xml:"condition"`
	Brand        string `xml:"brand"`
}

func WriteGoogleXML(w io.Writer, records []product.Record, ch Channel) error {
	doc := googleRSS{
		Version: "2.0",
		XmlnsG:  GoogleNamespace,
		Channel: googleChannel{
			Title:       ch.Title,
			Link:        ch.Link,
			Description: ch.Description,
			Items:       make([]googleItem, 0, len(records)),
		},
	}
	for _, r := range records {
		doc.Channel.Items = append(doc.Channel.Items, googleItem{
			ID:           r.ID,
			Title:        r.Title,
			Description:  r.Description,
			Link:         r.Link,
			ImageLink:    r.ImageLink,
			Price:        r.PriceWithCurrency(),
			Availability: string(r.Availability),
			Condition:    r.Condition,
			Brand:        r.Brand,
		})
	}
	return encodeXML(w, doc)
}

func WriteMetaXML(w io.Writer, records []product.Record) error {
	doc := metaFeed{Items: make([]metaItem, 0, len(records))}
	for _, r := range records {
		doc.Items = append(doc.Items, metaItem{
			ID:           r.ID,
			Title:        r.Title,
			Description:  r.Description,
			Link:         r.Link,
			ImageLink:    r.ImageLink,
			Price:        r.PriceWithCurrency(),
			Availability: string(r.Availability),
			Condition:    r.Condition,
			Brand:        r.Brand,
		})
	}
	return encodeXML(w, doc)
}

func encodeXML(w io.Writer, doc any) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xml header: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode xml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
