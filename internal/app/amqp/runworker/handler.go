package runworker

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/internal/pipeline"
)

type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Report, error)
}

type RunHandler struct {
	runner Runner
	logger *zap.SugaredLogger
}

type NewRunHandlerParams struct {
	fx.In

	Driver *pipeline.Driver
	Logger *zap.SugaredLogger
}

func NewRunHandler(p NewRunHandlerParams) *RunHandler {
	return &RunHandler{runner: p.Driver, logger: p.Logger}
}

// Handle executes one pipeline run. Per-URL failures are part of the report;
// only config errors are returned, which dead-letters the message.
func (h *RunHandler) Handle(ctx context.Context, msg RunRequestedEnvelope) error {
	if strings.TrimSpace(msg.EventID) == "" {
		return fmt.Errorf("missing event_id")
	}
	if name := strings.TrimSpace(msg.EventName); name != "" && name != RunRequestedEventName {
		return fmt.Errorf("unexpected event_name: %s", name)
	}

	rep, err := h.runner.Run(ctx, msg.Input())
	if err != nil {
		h.logger.Errorw("runworker_run_failed",
			"event_id", msg.EventID,
			"err", err,
		)
		return err
	}

	h.logger.Infow("runworker_finished",
		"event_id", msg.EventID,
		"run_id", rep.RunID,
		"status", rep.Status,
		"records", rep.Records,
		"failures", rep.Failures(),
	)
	return nil
}
