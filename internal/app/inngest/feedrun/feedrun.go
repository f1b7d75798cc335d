package feedrun

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/inngest/inngestgo"
	"github.com/inngest/inngestgo/step"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/internal/pipeline"
)

const (
	FunctionID            = "feed-run"
	RunRequestedEventName = "feed/run.requested"
)

type RunRequestedEventData struct {
	ListingURL   string   `json:"listing_url,omitempty"`
	URLs         []string `json:"urls,omitempty"`
	ManifestPath string   `json:"manifest_path,omitempty"`
}

type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Report, error)
}

// Summary is the step output Inngest memoizes for the run.
type Summary struct {
	RunID      string   `json:"run_id"`
	Status     string   `json:"status"`
	Source     string   `json:"source"`
	URLs       int      `json:"urls"`
	Records    int      `json:"records"`
	Failures   int      `json:"failures"`
	Duplicates int      `json:"duplicates"`
	Feeds      []string `json:"feeds"`
	Error      string   `json:"error,omitempty"`
}

type Function struct {
	runner Runner
	logger *zap.SugaredLogger
}

type NewFunctionParams struct {
	fx.In

	Driver *pipeline.Driver
	Logger *zap.SugaredLogger
}

func NewFunction(p NewFunctionParams) *Function {
	return &Function{runner: p.Driver, logger: p.Logger}
}

func (f *Function) Handle(ctx context.Context, input inngestgo.Input[RunRequestedEventData]) (any, error) {
	eventID := ""
	if input.Event.ID != nil {
		eventID = strings.TrimSpace(*input.Event.ID)
	}

	in, err := step.Run(ctx, "resolve-input", func(ctx context.Context) (pipeline.Input, error) {
		in, err := InputFromEvent(eventID, input.Event.Data)
		if err != nil {
			f.logger.Errorw("inngest_step_failed", "step", "resolve-input", "event_id", eventID, "err", err)
			return pipeline.Input{}, inngestgo.NoRetryError(err)
		}
		f.logger.Infow("inngest_step_done",
			"step", "resolve-input",
			"event_id", eventID,
			"urls", len(in.URLs),
			"listing_url", in.ListingURL,
			"manifest_path", in.ManifestPath,
		)
		return in, nil
	})
	if err != nil {
		return nil, err
	}

	summary, err := step.Run(ctx, "run-pipeline", func(ctx context.Context) (Summary, error) {
		rep, err := f.runner.Run(ctx, in)
		if err != nil {
			f.logger.Errorw("inngest_step_failed", "step", "run-pipeline", "run_id", in.RunID, "err", err)
			return Summary{}, inngestgo.NoRetryError(err)
		}
		return Summarize(rep), nil
	})
	if err != nil {
		return nil, err
	}

	f.logger.Infow("inngest_feed_run_finished",
		"run_id", summary.RunID,
		"status", summary.Status,
		"records", summary.Records,
		"failures", summary.Failures,
	)
	return summary, nil
}

// InputFromEvent validates the event payload. The event id doubles as the run id.
func InputFromEvent(eventID string, data RunRequestedEventData) (pipeline.Input, error) {
	in := pipeline.Input{
		RunID:        eventID,
		ListingURL:   strings.TrimSpace(data.ListingURL),
		ManifestPath: strings.TrimSpace(data.ManifestPath),
	}
	if in.ListingURL != "" {
		if err := checkHTTPURL(in.ListingURL); err != nil {
			return pipeline.Input{}, fmt.Errorf("listing_url: %w", err)
		}
	}
	for _, raw := range data.URLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if err := checkHTTPURL(raw); err != nil {
			return pipeline.Input{}, fmt.Errorf("urls: %w", err)
		}
		in.URLs = append(in.URLs, raw)
	}
	return in, nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url %q: must be absolute http(s)", raw)
	}
	return nil
}

func Summarize(rep *pipeline.Report) Summary {
	s := Summary{
		RunID:      rep.RunID,
		Status:     string(rep.Status),
		Source:     string(rep.Source),
		URLs:       len(rep.URLs),
		Records:    rep.Records,
		Failures:   rep.Failures(),
		Duplicates: rep.Duplicates,
		Feeds:      []string{},
		Error:      rep.Err,
	}
	for _, fr := range rep.Feeds {
		if fr.Err == nil {
			s.Feeds = append(s.Feeds, fr.Feed)
		}
	}
	return s
}
