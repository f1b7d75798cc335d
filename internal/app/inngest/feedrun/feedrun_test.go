package feedrun

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"catalog-feed-miner/internal/feed"
	"catalog-feed-miner/internal/pipeline"
)

func TestInputFromEvent(t *testing.T) {
	in, err := InputFromEvent("evt-1", RunRequestedEventData{
		ListingURL:   " https://joyandco.com/product/ ",
		URLs:         []string{"https://joyandco.com/product/lamp", " ", "https://joyandco.com/product/rug"},
		ManifestPath: "manifests/weekly.csv",
	})
	require.NoError(t, err)
	require.Equal(t, pipeline.Input{
		RunID:        "evt-1",
		ListingURL:   "https://joyandco.com/product/",
		URLs:         []string{"https://joyandco.com/product/lamp", "https://joyandco.com/product/rug"},
		ManifestPath: "manifests/weekly.csv",
	}, in)

	_, err = InputFromEvent("evt-2", RunRequestedEventData{URLs: []string{"/product/lamp"}})
	require.Error(t, err)
	_, err = InputFromEvent("evt-3", RunRequestedEventData{ListingURL: "mailto:shop@joyandco.com"})
	require.Error(t, err)
}

func TestSummarize(t *testing.T) {
	rep := &pipeline.Report{
		RunID:  "r1",
		Status: pipeline.StatusPartial,
		Source: pipeline.SourceProbe,
		URLs:   []string{"a", "b"},
		Items: []pipeline.Item{
			{URL: "a", Fetched: true, Extracted: true},
			{URL: "b"},
		},
		Records: 1,
		Feeds: []feed.Result{
			{Feed: feed.GoogleCSV},
			{Feed: feed.GoogleXML, Err: errors.New("disk full")},
		},
	}
	require.Equal(t, Summary{
		RunID:    "r1",
		Status:   "partial",
		Source:   "probe",
		URLs:     2,
		Records:  1,
		Failures: 1,
		Feeds:    []string{feed.GoogleCSV},
	}, Summarize(rep))
}

func TestEventIDForRequest(t *testing.T) {
	day := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)

	a, err := EventIDForRequest(RunRequestedEventData{
		URLs: []string{"https://JoyAndCo.com/product/lamp/?utm_source=x", "https://joyandco.com/product/rug"},
	}, day)
	require.NoError(t, err)
	b, err := EventIDForRequest(RunRequestedEventData{
		URLs: []string{"https://joyandco.com/product/rug", "https://joyandco.com/product/lamp#reviews"},
	}, day)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Regexp(t, `^feedrun:[0-9a-f]{64}$`, a)

	next, err := EventIDForRequest(RunRequestedEventData{
		URLs: []string{"https://joyandco.com/product/rug", "https://joyandco.com/product/lamp"},
	}, day.Add(time.Minute))
	require.NoError(t, err)
	require.NotEqual(t, a, next, "a new day is a new run")

	_, err = EventIDForRequest(RunRequestedEventData{ListingURL: "/product/"}, day)
	require.Error(t, err)
}
