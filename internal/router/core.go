package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/fx"
)

type Handler interface {
	RegisterRoute(r *chi.Mux)
	Handle(w http.ResponseWriter, r *http.Request)
}

// AsRoute provides constructor as a Handler in the "handlers" group that NewMux mounts.
func AsRoute(constructor any) fx.Option {
	return fx.Provide(
		fx.Annotate(
			constructor,
			fx.As(new(Handler)),
			fx.ResultTags(`group:"handlers"`),
		),
	)
}
