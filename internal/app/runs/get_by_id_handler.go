package runs

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/db"
	"catalog-feed-miner/internal/pkg/render"
	"catalog-feed-miner/internal/router"
	"catalog-feed-miner/internal/runstore"
)

type runGetter interface {
	GetRun(ctx context.Context, id string) (*runstore.Run, error)
}

type GetByIDHandler struct {
	store  runGetter
	logger *zap.SugaredLogger
}

type NewGetByIDHandlerParams struct {
	fx.In

	Store  *runstore.RunStore
	Logger *zap.SugaredLogger
}

func NewGetByIDHandler(p NewGetByIDHandlerParams) *GetByIDHandler {
	return &GetByIDHandler{
		store:  p.Store,
		logger: p.Logger,
	}
}

func (h *GetByIDHandler) RegisterRoute(r *chi.Mux) {
	r.Get("/v1/runs/{id}", h.Handle)
}

func (h *GetByIDHandler) Handle(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		render.ChiErr(w, http.StatusBadRequest, "missing id")
		return
	}

	run, err := h.store.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, runstore.ErrNotFound):
		render.ChiErr(w, http.StatusNotFound, "not found")
		return
	case errors.Is(err, db.ErrSQLiteDisabled):
		render.ChiErr(w, http.StatusServiceUnavailable, "run ledger disabled")
		return
	case err != nil:
		h.logger.Errorw("feed_run_get_by_id_failed", "id", id, "err", err)
		render.ChiErr(w, http.StatusInternalServerError, "failed to fetch run")
		return
	}

	render.ChiJSON(w, http.StatusOK, run)
}

var _ router.Handler = (*GetByIDHandler)(nil)
