package handler

import (
	"net/http"

	"reservoir/core"
	"reservoir/handler/hc"
	"reservoir/handler/rest"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/rs/cors"
)

// Server read api server
type Server struct {
	version string

	pool     core.IPool
	reserves core.IReserveStore
}

// New new server
func New(version string, pool core.IPool, reserveStore core.IReserveStore) Server {
	return Server{
		version:  version,
		pool:     pool,
		reserves: reserveStore,
	}
}

// Handler assembles the full http surface.
func (s Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(cors.AllowAll().Handler)

	r.Mount("/hc", hc.Handle(s.version, func(r *http.Request) error {
		_, err := s.reserves.Count(r.Context(), nil)
		return err
	}))
	r.Mount("/api", rest.Handle(s.pool, s.reserves))

	return r
}
