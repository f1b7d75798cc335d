package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/imagecheck"
	"catalog-feed-miner/internal/product"
)

const (
	GoogleCSV = "google_shopping_feed.csv"
	GoogleXML = "google_shopping_feed.xml"
	MetaXML   = "meta_shopping_feed.xml"
	MetaCSV   = "meta_shopping_feed.csv"
)

// Names lists the feed files in the order WriteAll produces them.
var Names = []string{GoogleCSV, GoogleXML, MetaXML, MetaCSV}

// ContentType returns the media type served for a feed file name.
func ContentType(name string) (string, bool) {
	switch name {
	case GoogleCSV, MetaCSV:
		return "text/csv; charset=utf-8", true
	case GoogleXML, MetaXML:
		return "application/xml; charset=utf-8", true
	}
	return "", false
}

// WriteError reports a single feed that could not be written.
type WriteError struct {
	Feed string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write feed %s: %v", e.Feed, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// ImageValidator prepares the image-validated copy used by the Meta feeds.
type ImageValidator interface {
	ValidateAll(ctx context.Context, records []product.Record) ([]product.Record, []imagecheck.Result)
}

// Result is the outcome of one feed file.
type Result struct {
	Feed    string
	Path    string
	Records int
	Err     error
}

// Output collects the per-feed results of WriteAll and the image checks made
// for the Meta feeds, aligned with the input records.
type Output struct {
	Feeds  []Result
	Images []imagecheck.Result
}

type Writer struct {
	outDir  string
	channel Channel
	images  ImageValidator
	logger  *zap.SugaredLogger
}

func NewWriter(outDir string, ch Channel, images ImageValidator, logger *zap.SugaredLogger) *Writer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Writer{outDir: outDir, channel: ch, images: images, logger: logger}
}

func NewWriterFromConfig(cfg *config.Config, images ImageValidator, logger *zap.SugaredLogger) *Writer {
	return NewWriter(cfg.Feed.OutDir, Channel{
		Title:       cfg.Site.DefaultBrand + " Product Feed",
		Link:        cfg.Site.BaseURL,
		Description: "Product feed for Google Shopping",
	}, images, logger)
}

func (w *Writer) OutDir() string { return w.outDir }

// WriteAll writes all four feeds. A failing feed does not stop the others; the
// returned error joins every *WriteError. Meta feeds are written from an
// image-validated copy of records.
func (w *Writer) WriteAll(ctx context.Context, records []product.Record) (Output, error) {
	var out Output
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		werr := &WriteError{Feed: "*", Err: err}
		for _, name := range Names {
			out.Feeds = append(out.Feeds, Result{Feed: name, Path: filepath.Join(w.outDir, name), Err: werr})
		}
		return out, werr
	}

	meta := records
	if w.images != nil {
		meta, out.Images = w.images.ValidateAll(ctx, records)
	}

	writers := []struct {
		name    string
		records []product.Record
		write   func(io.Writer, []product.Record) error
	}{
		{GoogleCSV, records, WriteGoogleCSV},
		{GoogleXML, records, func(dst io.Writer, rs []product.Record) error { return WriteGoogleXML(dst, rs, w.channel) }},
		{MetaXML, meta, WriteMetaXML},
		{MetaCSV, meta, WriteMetaCSV},
	}

	var errs []error
	for _, fw := range writers {
		path := filepath.Join(w.outDir, fw.name)
		res := Result{Feed: fw.name, Path: path, Records: len(fw.records)}
		if err := writeAtomic(path, func(dst io.Writer) error { return fw.write(dst, fw.records) }); err != nil {
			werr := &WriteError{Feed: fw.name, Err: err}
			res.Err = werr
			errs = append(errs, werr)
			w.logger.Errorw("feed_write_failed", "feed", fw.name, "path", path, "err", err)
		} else {
			w.logger.Infow("feed_written", "feed", fw.name, "path", path, "records", len(fw.records))
		}
		out.Feeds = append(out.Feeds, res)
	}
	return out, errors.Join(errs...)
}

// writeAtomic writes through a temp file in the target directory and renames it
// into place, so readers never observe a partial feed.
func writeAtomic(path string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
