package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"catalog-feed-miner/internal/feed"
	"catalog-feed-miner/internal/listing"
)

const DebugReportName = "debug_report.txt"

type Source string

const (
	SourceExplicit Source = "explicit"
	SourceListing  Source = "listing"
	SourceProbe    Source = "probe"
	SourceManifest Source = "manifest"
	SourceNone     Source = "none"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusEmpty     Status = "empty"
	StatusFailed    Status = "failed"
)

const (
	ImageOK        = "ok"
	ImageUnchecked = "unchecked"
	ImageReplaced  = "replaced"
)

// Item traces one candidate URL through the run.
type Item struct {
	URL           string `json:"url"`
	Fetched       bool   `json:"fetched"`
	Extracted     bool   `json:"extracted"`
	Title         string `json:"title,omitempty"`
	PriceFallback bool   `json:"price_fallback,omitempty"`
	ImageStatus   string `json:"image_status,omitempty"`
	Err           string `json:"error,omitempty"`
}

type Report struct {
	RunID      string         `json:"run_id"`
	Source     Source         `json:"source"`
	Status     Status         `json:"status"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	URLs       []string       `json:"urls"`
	Items      []Item         `json:"items"`
	Records    int            `json:"records"`
	Duplicates int            `json:"duplicates"`
	NoInput    bool           `json:"no_input,omitempty"`
	Listing    []listing.Page `json:"-"`
	Feeds      []feed.Result  `json:"-"`
	Err        string         `json:"error,omitempty"`
}

// Failures counts URLs that produced no record.
func (r *Report) Failures() int {
	n := 0
	for _, it := range r.Items {
		if !it.Extracted {
			n++
		}
	}
	return n
}

func (r *Report) feedFailures() int {
	n := 0
	for _, f := range r.Feeds {
		if f.Err != nil {
			n++
		}
	}
	return n
}

func (r *Report) resolveStatus() Status {
	switch {
	case r.Err != "":
		return StatusFailed
	case r.NoInput:
		return StatusEmpty
	case r.Failures() > 0 || r.feedFailures() > 0:
		return StatusPartial
	}
	return StatusSucceeded
}

// WriteText renders the operator-facing trace of the run.
func (r *Report) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Feed run %s\n", r.RunID)
	fmt.Fprintf(bw, "Status:     %s\n", r.Status)
	fmt.Fprintf(bw, "Started:    %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(bw, "Finished:   %s (%s)\n", r.FinishedAt.UTC().Format(time.RFC3339), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(bw, "Source:     %s\n", r.Source)
	fmt.Fprintf(bw, "URLs:       %d\n", len(r.URLs))
	fmt.Fprintf(bw, "Records:    %d\n", r.Records)
	fmt.Fprintf(bw, "Failures:   %d\n", r.Failures())
	fmt.Fprintf(bw, "Duplicates: %d\n", r.Duplicates)
	if r.NoInput {
		fmt.Fprintf(bw, "Note:       %v\n", ErrNoInput)
	}
	if r.Err != "" {
		fmt.Fprintf(bw, "Error:      %s\n", r.Err)
	}

	if len(r.Listing) > 0 {
		fmt.Fprintf(bw, "\nListing pages:\n")
		for _, p := range r.Listing {
			if p.Err != nil {
				fmt.Fprintf(bw, "  [FAILED] %s: %v\n", p.URL, p.Err)
				continue
			}
			fmt.Fprintf(bw, "  [OK] %s links=%d (cards=%d patterns=%d images=%d)\n",
				p.URL, p.Links, p.Stats.Cards, p.Stats.Patterns, p.Stats.Images)
		}
	}

	fmt.Fprintf(bw, "\nItems:\n")
	if len(r.Items) == 0 {
		fmt.Fprintf(bw, "  (none)\n")
	}
	for _, it := range r.Items {
		switch {
		case !it.Fetched:
			fmt.Fprintf(bw, "  [FETCH FAILED] %s: %s\n", it.URL, it.Err)
		case !it.Extracted:
			fmt.Fprintf(bw, "  [EXTRACT FAILED] %s: %s\n", it.URL, it.Err)
		default:
			fmt.Fprintf(bw, "  [OK] %s title=%q", it.URL, it.Title)
			if it.PriceFallback {
				fmt.Fprintf(bw, " price=default")
			}
			if it.ImageStatus != "" {
				fmt.Fprintf(bw, " image=%s", it.ImageStatus)
			}
			if it.Err != "" {
				fmt.Fprintf(bw, " note=%q", it.Err)
			}
			fmt.Fprintln(bw)
		}
	}

	fmt.Fprintf(bw, "\nFeeds:\n")
	for _, f := range r.Feeds {
		if f.Err != nil {
			fmt.Fprintf(bw, "  [FAILED] %s: %v\n", f.Feed, f.Err)
			continue
		}
		fmt.Fprintf(bw, "  [OK] %s records=%d\n", f.Feed, f.Records)
	}

	return bw.Flush()
}

func writeDebugReport(dir string, r *Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, DebugReportName))
	if err != nil {
		return err
	}
	if err := r.WriteText(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
