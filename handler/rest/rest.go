// Package rest is the read only API over the pool: reserve data, time
// adjusted indices and user positions.
package rest

import (
	"errors"
	"net/http"

	"reservoir/core"
	"reservoir/handler/render"
	"reservoir/handler/views"

	"github.com/go-chi/chi"
)

// Handle handle rest api request
func Handle(pool core.IPool, reserveStore core.IReserveStore) http.Handler {
	router := chi.NewRouter()

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render.NotFoundRequest(w, errors.New("not found"))
	})

	router.Get("/reserves", allReservesHandler(reserveStore))
	router.Get("/reserves/{asset}", reserveHandler(pool))
	router.Get("/users/{address}", userHandler(pool, reserveStore))

	return router
}

func allReservesHandler(reserveStore core.IReserveStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reserves, err := reserveStore.All(r.Context(), nil)
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		list := make([]views.Reserve, 0, len(reserves))
		for _, reserve := range reserves {
			list = append(list, views.NewReserve(reserve))
		}
		render.JSON(w, render.H{"reserves": list})
	}
}

func reserveHandler(pool core.IPool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		asset := chi.URLParam(r, "asset")

		reserve, err := pool.Reserve(ctx, asset)
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}
		income, err := pool.NormalizedIncome(ctx, asset)
		if err != nil {
			render.BadRequest(w, err)
			return
		}
		debt, err := pool.NormalizedDebt(ctx, asset)
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		render.JSON(w, views.NewReserve(reserve).WithNormalized(income, debt))
	}
}

func userHandler(pool core.IPool, reserveStore core.IReserveStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		address := chi.URLParam(r, "address")

		userConfig, err := pool.UserConfiguration(ctx, address)
		if err != nil {
			render.NotFoundRequest(w, err)
			return
		}
		reserves, err := reserveStore.All(ctx, nil)
		if err != nil {
			render.BadRequest(w, err)
			return
		}

		render.JSON(w, views.NewUser(address, userConfig, reserves))
	}
}
