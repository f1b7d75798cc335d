package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"

	"catalog-feed-miner/db"
	"catalog-feed-miner/internal/pkg/render"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	ledger Pinger
}

type NewHandlerParams struct {
	fx.In

	Ledger db.Conn `name:"sqlite" optional:"true"`
}

func NewHandler(p NewHandlerParams) *Handler {
	h := &Handler{}
	if p.Ledger != nil {
		h.ledger = p.Ledger
	}
	return h
}

func (h *Handler) RegisterRoute(r *chi.Mux) {
	r.Get("/health", h.Handle)
}

type response struct {
	OK     bool   `json:"ok"`
	Ledger string `json:"ledger"`
}

// Handle always answers 200; a broken ledger is reported, not fatal.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	render.ChiJSON(w, http.StatusOK, response{OK: true, Ledger: h.ledgerStatus(r.Context())})
}

func (h *Handler) ledgerStatus(ctx context.Context) string {
	if h.ledger == nil {
		return "disabled"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := h.ledger.PingContext(ctx)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, db.ErrSQLiteDisabled):
		return "disabled"
	default:
		return "error"
	}
}
