package routes

import (
	"net/http"
	"time"

	"github.com/Dosada05/studio-leaderboards/handlers"
	"github.com/Dosada05/studio-leaderboards/metrics"
	"github.com/Dosada05/studio-leaderboards/middleware"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func SetupRoutes(
	router chi.Router,
	jwtSecret []byte,
	allowedOrigins []string,
	m *metrics.Metrics,
	healthHandler *handlers.HealthHandler,
	leaderboardHandler *handlers.LeaderboardHandler,
	periodHandler *handlers.PeriodHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(m.Middleware)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthHandler.Healthz)
	router.Handle("/metrics", m.Handler())

	// Websocket без таймаута: соединение живёт долго.
	router.Get("/ws/leaderboards/{leaderboardID}", webSocketHandler.ServeWs)

	router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(30 * time.Second))

		r.Route("/leaderboards/{leaderboardID}", func(r chi.Router) {
			r.Get("/", leaderboardHandler.GetLeaderboard)
			r.Get("/periods", leaderboardHandler.ListPeriods)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(jwtSecret))
				r.Use(middleware.RequireRole(middleware.RoleAdmin))

				r.Post("/periods/current", leaderboardHandler.EnsureCurrentPeriod)
				r.Post("/rollover", leaderboardHandler.Rollover)
			})
		})

		r.Route("/periods/{periodID}", func(r chi.Router) {
			r.Get("/standings", periodHandler.GetStandings)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(jwtSecret))
				r.Use(middleware.RequireRole(middleware.RoleAdmin))

				r.Post("/finalize", periodHandler.Finalize)
			})
		})
	})
}
