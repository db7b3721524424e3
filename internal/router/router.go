package router

import (
	"net/http"

	"github.com/comanda-pos/api/internal/config"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/handler"
	mw "github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Sales   *service.SaleService
	Tables  *service.TableService
	Cash    *service.CashService
	Changes handler.ChangeFeed
}

// New creates a Chi router with all application routes wired up.
// Every route except /health and the push channel requires a bearer token.
func New(cfg *config.Config, svc Services, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Floor staff and kitchen screens
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.EmployeeRoleAdmin, enum.EmployeeRoleManager, enum.EmployeeRoleWaiter, enum.EmployeeRoleKitchen))

			r.Route("/sales", handler.NewSaleHandler(svc.Sales).RegisterRoutes)
			r.Route("/sectors", handler.NewSectorHandler(svc.Sales).RegisterRoutes)
			r.Route("/tables", handler.NewTableHandler(svc.Tables).RegisterRoutes)
			r.Route("/changes", handler.NewChangesHandler(svc.Changes).RegisterRoutes)
		})

		// Register
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.EmployeeRoleAdmin, enum.EmployeeRoleManager))
			r.Route("/cash", handler.NewCashHandler(svc.Cash).RegisterRoutes)
		})
	})

	log.Info().Msg("router initialized")
	return r
}
