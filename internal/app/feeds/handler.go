package feeds

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"catalog-feed-miner/config"
	"catalog-feed-miner/internal/feed"
	"catalog-feed-miner/internal/pipeline"
	"catalog-feed-miner/internal/pkg/render"
	"catalog-feed-miner/internal/router"
)

// Handler serves the files of the last run from the feed output directory.
type Handler struct {
	outDir string
	logger *zap.SugaredLogger
}

type NewHandlerParams struct {
	fx.In

	Cfg    *config.Config
	Logger *zap.SugaredLogger
}

func NewHandler(p NewHandlerParams) *Handler {
	return &Handler{outDir: p.Cfg.Feed.OutDir, logger: p.Logger}
}

func (h *Handler) RegisterRoute(r *chi.Mux) {
	r.Get("/v1/feeds/{name}", h.Handle)
}

func contentType(name string) (string, bool) {
	if name == pipeline.DebugReportName {
		return "text/plain; charset=utf-8", true
	}
	return feed.ContentType(name)
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	ct, ok := contentType(name)
	if !ok {
		render.ChiErr(w, http.StatusNotFound, "unknown feed")
		return
	}

	f, err := os.Open(filepath.Join(h.outDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		render.ChiErr(w, http.StatusNotFound, "feed not generated yet")
		return
	}
	if err != nil {
		h.logger.Errorw("feed_open_failed", "feed", name, "err", err)
		render.ChiErr(w, http.StatusInternalServerError, "failed to open feed")
		return
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		h.logger.Errorw("feed_stat_failed", "feed", name, "err", err)
		render.ChiErr(w, http.StatusInternalServerError, "failed to open feed")
		return
	}

	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	http.ServeContent(w, r, name, st.ModTime(), f)
}

var _ router.Handler = (*Handler)(nil)
