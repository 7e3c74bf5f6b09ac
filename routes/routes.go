package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/oacdarts/tournament-engine/handlers"
	"github.com/oacdarts/tournament-engine/middleware"
	"github.com/oacdarts/tournament-engine/models"
	"github.com/oacdarts/tournament-engine/services"
)

type Handlers struct {
	Auth       *handlers.AuthHandler
	Tournament *handlers.TournamentHandler
	Match      *handlers.MatchHandler
	Rating     *handlers.RatingHandler
	WebSocket  *handlers.WebSocketHandler
}

func InitRoutes(h Handlers, authService services.AuthService) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(authService)
	organizerOnly := middleware.Authorize(models.RoleOrganizer)

	router.Post("/users/signup", h.Auth.SignUpHandler)
	router.Post("/users/signin", h.Auth.SignInHandler)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", h.Tournament.ListTournamentsHandler)
		r.Get("/{tournamentID}", h.Tournament.GetTournamentHandler)
		r.Get("/{tournamentID}/standings", h.Tournament.GroupStandingsHandler)
		r.Get("/{tournamentID}/bracket", h.Tournament.GetBracketHandler)
		r.Get("/{tournamentID}/ws", h.WebSocket.ServeTournamentWS)

		// Player self-service registration.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/{tournamentID}/players", h.Tournament.RegisterPlayerHandler)
		})

		// Everything that moves the tournament machine is organizer-only.
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/", h.Tournament.CreateTournamentHandler)
			r.Patch("/players/{entryID}/status", h.Tournament.UpdatePlayerStatusHandler)
			r.Post("/{tournamentID}/group-stage", h.Tournament.GenerateGroupStageHandler)
			r.Post("/{tournamentID}/knockout", h.Tournament.GenerateKnockoutHandler)
			r.Post("/{tournamentID}/finish", h.Tournament.FinishTournamentHandler)
			r.Post("/{tournamentID}/cancel", h.Tournament.CancelTournamentHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", h.Match.GetMatchHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/{matchID}/start", h.Match.StartMatchHandler)
			r.Post("/{matchID}/legs", h.Match.RecordLegHandler)
			r.Post("/{matchID}/finish", h.Match.FinishMatchHandler)
		})
	})

	router.Route("/ratings", func(r chi.Router) {
		r.Get("/players/{playerID}", h.Rating.GetPlayerRatingHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/players/{playerID}/replay", h.Rating.ReplayPlayerHandler)
			r.Post("/replay", h.Rating.ReplayAllHandler)
		})
	})

	return router
}
