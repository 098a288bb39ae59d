package hc

import (
	"net/http"
	"time"

	"reservoir/handler/render"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

// CheckFunc reports whether a downstream dependency is reachable.
type CheckFunc func(r *http.Request) error

// Handle handle hc request. ready is probed on every call; a nil ready
// marks the service live unconditionally.
func Handle(ver string, ready CheckFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NoCache)
	r.Handle("/", handle(ver, ready))
	return r
}

func handle(version string, ready CheckFunc) http.HandlerFunc {
	b := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(b).Truncate(time.Millisecond)

		body := render.H{
			"uptime":  uptime.String(),
			"version": version,
		}

		status := http.StatusOK
		if ready != nil {
			if err := ready(r); err != nil {
				body["ready"] = false
				body["error"] = err.Error()
				status = http.StatusServiceUnavailable
			} else {
				body["ready"] = true
			}
		}

		render.JSONStatus(w, status, body)
	}
}
