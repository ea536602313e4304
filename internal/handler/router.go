package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/RubenMansilla/Nebripop-sub000/internal/middleware"
)

// SetupRouter wires the HTTP routes and middleware of the marketplace service.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/balance", h.GetBalance)
			r.Post("/balance/deposit", h.Deposit)
		})
	})

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/", h.CreateProduct)
		})
	})

	r.Route("/api/auctions", func(r chi.Router) {
		r.Get("/", h.ListAuctions)
		r.Get("/{id}", h.GetAuction)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/", h.CreateAuction)
			r.Delete("/{id}", h.DeleteAuction)
			r.Post("/{id}/bid", h.PlaceBid)
			r.Post("/{id}/pay", h.Pay)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
