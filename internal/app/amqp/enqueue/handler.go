package enqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/app/amqp/runworker"
	"catalog-feed-miner/internal/pkg/amqpclient"
	"catalog-feed-miner/internal/pkg/render"
	"catalog-feed-miner/internal/router"
)

type publishFunc func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error

type Handler struct {
	cfg       *config.Config
	channel   *amqp.Channel
	logger    *zap.SugaredLogger
	validator *validator.Validate

	publish publishFunc
	newID   func() string
	now     func() time.Time
}

type NewHandlerParams struct {
	fx.In

	Cfg     *config.Config
	Channel *amqp.Channel `optional:"true"`
	Logger  *zap.SugaredLogger
}

func NewHandler(p NewHandlerParams) *Handler {
	var publishFn publishFunc
	if p.Channel != nil {
		publishFn = p.Channel.PublishWithContext
	}

	return &Handler{
		cfg:       p.Cfg,
		channel:   p.Channel,
		logger:    p.Logger,
		validator: validator.New(),
		publish:   publishFn,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (h *Handler) RegisterRoute(r *chi.Mux) {
	r.Post("/v1/runs/enqueue", h.Handle)
}

// An empty request runs with the configured listing, probes and manifest.
type enqueueRequest struct {
	ListingURL   string   `json:"listing_url" validate:"omitempty,http_url"`
	URLs         []string `json:"urls" validate:"omitempty,max=5000,dive,required,http_url"`
	ManifestPath string   `json:"manifest_path" validate:"omitempty,max=1024"`
}

type enqueueResponse struct {
	OK      bool   `json:"ok"`
	EventID string `json:"event_id"`
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		render.ChiErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	req.ListingURL = strings.TrimSpace(req.ListingURL)
	req.ManifestPath = strings.TrimSpace(req.ManifestPath)
	if err := h.validator.Struct(req); err != nil {
		render.ChiErr(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	if h.cfg == nil || strings.TrimSpace(h.cfg.RabbitMQ.URL) == "" || h.publish == nil {
		render.ChiErr(w, http.StatusServiceUnavailable, "rabbitmq disabled")
		return
	}

	t := amqpclient.TopologyFromConfig(h.cfg)
	now := h.now()
	eventID := h.newID()

	body, err := json.Marshal(runworker.RunRequestedEnvelope{
		EventName: runworker.RunRequestedEventName,
		EventID:   eventID,
		TS:        now,
		Data: runworker.RunRequestedEventData{
			ListingURL:   req.ListingURL,
			URLs:         req.URLs,
			ManifestPath: req.ManifestPath,
		},
	})
	if err != nil {
		h.logger.Errorw("enqueue_marshal_failed", "err", err)
		render.ChiErr(w, http.StatusInternalServerError, "failed to encode message")
		return
	}

	if h.channel != nil && h.cfg.RabbitMQ.DeclareTopology {
		if err := h.channel.ExchangeDeclare(t.Exchange, "topic", true, false, false, false, nil); err != nil {
			h.logger.Errorw("enqueue_exchange_declare_failed", "exchange", t.Exchange, "err", err)
			render.ChiErr(w, http.StatusBadGateway, fmt.Sprintf("rabbitmq exchange declare failed: %s", t.Exchange))
			return
		}
	}

	if err := h.publish(r.Context(), t.Exchange, t.RoutingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    now,
		MessageId:    eventID,
		Type:         runworker.RunRequestedEventName,
		Body:         body,
	}); err != nil {
		h.logger.Errorw(
			"enqueue_publish_failed",
			"exchange", t.Exchange,
			"routing_key", t.RoutingKey,
			"event_id", eventID,
			"err", err,
		)
		render.ChiErr(w, http.StatusBadGateway, "failed to publish message")
		return
	}

	h.logger.Infow("enqueue_published",
		"exchange", t.Exchange,
		"routing_key", t.RoutingKey,
		"event_id", eventID,
		"urls", len(req.URLs),
		"listing_url", req.ListingURL,
	)
	render.ChiJSON(w, http.StatusAccepted, enqueueResponse{OK: true, EventID: eventID})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("invalid %s (%s)", strings.ToLower(fe.Namespace()), fe.Tag())
	}
	return "invalid request"
}

var _ router.Handler = (*Handler)(nil)
