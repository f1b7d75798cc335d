package inngest

import (
	"net/http"

	"catalog-feed-miner/config"
	pkginngest "catalog-feed-miner/internal/pkg/inngest"
	"catalog-feed-miner/internal/pkg/render"
	"catalog-feed-miner/internal/router"

	"github.com/go-chi/chi/v5"
	"github.com/inngest/inngestgo"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type InngestHandler struct {
	logger *zap.SugaredLogger
	cfg    *config.Config
	client inngestgo.Client
}

type NewInngestHandlerParams struct {
	fx.In

	Logger *zap.SugaredLogger
	Config *config.Config
	Client inngestgo.Client
}

func NewInngestHandler(p NewInngestHandlerParams) *InngestHandler {
	return &InngestHandler{
		logger: p.Logger,
		cfg:    p.Config,
		client: p.Client,
	}
}

func (h *InngestHandler) RegisterRoute(r *chi.Mux) {
	path := pkginngest.ServePath(h.cfg)

	r.Post(path, h.Handle)
	r.Put(path, h.Handle)
	r.Get(path, h.Handle)
}

func (h *InngestHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !pkginngest.Enabled(h.cfg) {
		render.ChiErr(w, http.StatusNotImplemented, pkginngest.ErrDisabled.Error())
		return
	}

	h.client.Serve().ServeHTTP(w, r)
}

var _ router.Handler = (*InngestHandler)(nil)
