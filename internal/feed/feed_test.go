package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"catalog-feed-miner/internal/imagecheck"
	"catalog-feed-miner/internal/product"
)

func sampleRecords() []product.Record {
	return []product.Record{
		{
			ID: "red-vase", Title: "Red Vase", Description: `Hand-blown, "ruby" glass`,
			Price: "120.00", Currency: "AED", ImageLink: "http://joyandco.com/img/red-vase.jpg",
			Availability: product.OutOfStock, Condition: product.ConditionNew,
			Link: "https://joyandco.com/product/red-vase", Brand: "Joy and Co",
		},
		{
			ID: "oak-table", Title: "Oak Table", Description: "Line one\nline two & more",
			Price: "1250.50", Currency: "AED", ImageLink: "https://joyandco.com/img/oak.jpg",
			Availability: product.InStock, Condition: product.ConditionNew,
			Link: "https://joyandco.com/product/oak-table", Brand: "Oakworks",
		},
	}
}

func TestGoogleCSV_RoundTrip(t *testing.T) {
	in := sampleRecords()
	var buf bytes.Buffer
	require.NoError(t, WriteGoogleCSV(&buf, in))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, len(in)+1)
	require.Equal(t, GoogleCSVHeader, rows[0])

	for i, r := range in {
		require.Equal(t, []string{
			r.ID, r.Title, r.Description, r.Link, r.ImageLink,
			r.Price, r.Currency, string(r.Availability), r.Condition, r.Brand,
		}, rows[i+1])
	}
}

func TestMetaCSV_FoldsCurrency(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetaCSV(&buf, sampleRecords()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, MetaCSVHeader, rows[0])
	require.Equal(t, "120.00 AED", rows[1][5])
	require.Equal(t, "out of stock", rows[1][3])
}

func TestEmptyFeeds_WellFormed(t *testing.T) {
	var gcsv, mcsv, gxml, mxml bytes.Buffer
	require.NoError(t, WriteGoogleCSV(&gcsv, nil))
	require.NoError(t, WriteMetaCSV(&mcsv, nil))
	require.NoError(t, WriteGoogleXML(&gxml, nil, Channel{Title: "t"}))
	require.NoError(t, WriteMetaXML(&mxml, nil))

	rows, err := csv.NewReader(&gcsv).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{GoogleCSVHeader}, rows)

	rows, err = csv.NewReader(&mcsv).ReadAll()
	require.NoError(t, err)
	require.Equal(t, [][]string{MetaCSVHeader}, rows)

	var rss parsedRSS
	require.True(t, strings.HasPrefix(gxml.String(), "<?xml"))
	require.NoError(t, xml.Unmarshal(gxml.Bytes(), &rss))
	require.Equal(t, "2.0", rss.Version)
	require.Empty(t, rss.Channel.Items)

	var mf parsedMeta
	require.True(t, strings.HasPrefix(mxml.String(), "<?xml"))
	require.NoError(t, xml.Unmarshal(mxml.Bytes(), &mf))
	require.Empty(t, mf.Items)
}

func TestGoogleXML_Items(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteGoogleXML(&buf, sampleRecords(), Channel{
		Title: "Joy and Co Products", Link: "https://joyandco.com", Description: "feed",
	}))
	require.Contains(t, buf.String(), `xmlns:g="http://base.google.com/ns/1.0"`)

	var rss parsedRSS
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &rss))
	require.Equal(t, "Joy and Co Products", rss.Channel.Title)
	require.Len(t, rss.Channel.Items, 2)

	first := rss.Channel.Items[0]
	require.Equal(t, "red-vase", first.ID)
	require.Equal(t, "120.00 AED", first.Price)
	require.Equal(t, `Hand-blown, "ruby" glass`, first.Description)
	require.Equal(t, "out of stock", first.Availability)
	require.Equal(t, "Joy and Co", first.Brand)
	require.Equal(t, "Line one\nline two & more", rss.Channel.Items[1].Description)
}

func TestMetaXML_Items(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetaXML(&buf, sampleRecords()))

	var mf parsedMeta
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &mf))
	require.Len(t, mf.Items, 2)
	require.Equal(t, "1250.50 AED", mf.Items[1].Price)
	require.Equal(t, "https://joyandco.com/img/oak.jpg", mf.Items[1].ImageLink)
}

type httpsRewriter struct{ calls int }

func (h *httpsRewriter) ValidateAll(_ context.Context, records []product.Record) ([]product.Record, []imagecheck.Result) {
	h.calls++
	out := make([]product.Record, len(records))
	copy(out, records)
	results := make([]imagecheck.Result, len(records))
	for i := range out {
		out[i].ImageLink = strings.Replace(out[i].ImageLink, "http://", "https://", 1)
		results[i] = imagecheck.Result{OK: true, URL: out[i].ImageLink}
	}
	return out, results
}

func TestWriter_WriteAll(t *testing.T) {
	dir := t.TempDir()
	images := &httpsRewriter{}
	w := NewWriter(dir, Channel{Title: "t"}, images, nil)

	in := sampleRecords()
	out, err := w.WriteAll(context.Background(), in)
	require.NoError(t, err)
	results := out.Feeds
	require.Len(t, results, 4)
	require.Len(t, out.Images, len(in))
	require.Equal(t, 1, images.calls)

	for i, name := range Names {
		require.Equal(t, name, results[i].Feed)
		require.NoError(t, results[i].Err)
		require.FileExists(t, filepath.Join(dir, name))
	}

	google, err := os.ReadFile(filepath.Join(dir, GoogleCSV))
	require.NoError(t, err)
	require.Contains(t, string(google), "http://joyandco.com/img/red-vase.jpg")

	meta, err := os.ReadFile(filepath.Join(dir, MetaCSV))
	require.NoError(t, err)
	require.Contains(t, string(meta), "https://joyandco.com/img/red-vase.jpg")
	require.NotContains(t, string(meta), "http://joyandco.com/img/red-vase.jpg")

	// caller's slice untouched
	require.Equal(t, "http://joyandco.com/img/red-vase.jpg", in[0].ImageLink)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 4, "no temp files left behind")
}

func TestWriter_OneFeedFailureDoesNotStopOthers(t *testing.T) {
	dir := t.TempDir()
	// a directory squatting on the target name makes the rename fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, GoogleXML), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, GoogleXML, "keep"), []byte("x"), 0o644))

	w := NewWriter(dir, Channel{}, nil, nil)
	out, err := w.WriteAll(context.Background(), sampleRecords())
	require.Error(t, err)
	results := out.Feeds
	require.Empty(t, out.Images)

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	require.Equal(t, GoogleXML, werr.Feed)

	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	require.NoError(t, results[3].Err)
	require.FileExists(t, filepath.Join(dir, MetaCSV))
}

func TestContentType(t *testing.T) {
	ct, ok := ContentType(GoogleXML)
	require.True(t, ok)
	require.Contains(t, ct, "xml")

	ct, ok = ContentType(MetaCSV)
	require.True(t, ok)
	require.Contains(t, ct, "csv")

	_, ok = ContentType("passwd")
	require.False(t, ok)
}

type parsedRSS struct {
	Version string `xml:"version,attr"`
	Channel struct {
		Title string `xml:"title"`
		Items []struct {
			ID           string `xml:"http://base.google.com/ns/1.0 id"`
			Title        string `xml:"title"`
			Description  string `xml:"description"`
			Price        string `xml:"http://base.google.com/ns/1.0 price"`
			Availability string `xml:"http://base.google.com/ns/1.0 availability"`
			Brand        string `xml:"http://base.google.com/ns/1.0 brand"`
		} `xml:"item"`
	} `xml:"channel"`
}

type parsedMeta struct {
	Items []struct {
		ID        string `xml:"id"`
		Price     string `xml:"price"`
		ImageLink string `xml:"image_link"`
	} `xml:"item"`
}
