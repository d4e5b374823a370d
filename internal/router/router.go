package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/morinoya/order-api/internal/config"
	"github.com/morinoya/order-api/internal/database"
	"github.com/morinoya/order-api/internal/handler"
	"github.com/morinoya/order-api/internal/notify"
	"github.com/morinoya/order-api/internal/service"
	"github.com/morinoya/order-api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, queries *database.Queries, hub *ws.Hub, notifier *notify.Notifier) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS: the customer site and admin dashboard are separate origins.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.SiteOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Public shop status
	statusHandler := handler.NewStatusHandler(queries)
	r.Get("/api/public/status", statusHandler.Get)

	// Orders
	orderService := service.NewOrderService(queries, cfg.OrderNoFormat)
	orderHandler := handler.NewOrderHandler(orderService, queries, notifier)
	r.Route("/api/orders", orderHandler.RegisterRoutes)

	// Admin session + stop flag
	adminHandler := handler.NewAdminHandler(queries, cfg.AdminPassword)
	r.Route("/api/admin", func(r chi.Router) {
		adminHandler.RegisterRoutes(r)

		// Change feed (admin cookie checked inside ServeWS before upgrading)
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ws.ServeWS(hub, w, r)
		})
	})

	return r
}
