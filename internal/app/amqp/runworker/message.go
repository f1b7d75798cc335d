package runworker

import (
	"time"

	"catalog-feed-miner/internal/pipeline"
)

const RunRequestedEventName = "feed/run.requested"

type RunRequestedEventData struct {
	ListingURL   string   `json:"listing_url,omitempty"`
	URLs         []string `json:"urls,omitempty"`
	ManifestPath string   `json:"manifest_path,omitempty"`
}

type RunRequestedEnvelope struct {
	EventName string                `json:"event_name"`
	EventID   string                `json:"event_id"`
	TS        time.Time             `json:"ts"`
	Data      RunRequestedEventData `json:"data"`
}

// Input maps the request onto a pipeline run; the event id becomes the run id.
func (e RunRequestedEnvelope) Input() pipeline.Input {
	return pipeline.Input{
		RunID:        e.EventID,
		URLs:         e.Data.URLs,
		ListingURL:   e.Data.ListingURL,
		ManifestPath: e.Data.ManifestPath,
	}
}
