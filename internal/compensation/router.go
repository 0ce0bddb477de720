package compensation

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/cors"

	"github.com/brave-intl/compensation-engine/internal/handlers"
	"github.com/brave-intl/compensation-engine/internal/middleware"
)

// Router builds the top-level chi.Mux for the compensation engine:
// partner-scoped order and compensation routes, and a distinct
// admin-scoped subtree, the way eyeshade.Service.RouterV1 mounts
// per-concern sub-routers.
func (s *Service) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.Config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Method("GET", "/", handlers.AppHandler(func(w http.ResponseWriter, r *http.Request) *handlers.AppError {
		return handlers.Render(r.Context(), *bytes.NewBufferString("ack."), w, http.StatusOK)
	}))
	r.Method("GET", "/metrics", middleware.Metrics())

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.BearerToken, middleware.PartnerAuth)
		pr.Mount("/orders", s.RouterOrders())
		pr.Mount("/compensation", s.RouterCompensation())
	})

	r.Group(func(ar chi.Router) {
		ar.Use(middleware.BearerToken, middleware.AdminAuth)
		ar.Mount("/admin", s.RouterAdmin())
	})

	return r
}
