package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Olzhas11/competition-platform/handlers"
	"github.com/Olzhas11/competition-platform/middleware"
	"github.com/Olzhas11/competition-platform/models"
)

type Handlers struct {
	Auth         *handlers.AuthHandler
	Competition  *handlers.CompetitionHandler
	Phase        *handlers.PhaseHandler
	Team         *handlers.TeamHandler
	Scoring      *handlers.ScoringHandler
	Voting       *handlers.VotingHandler
	Registration *handlers.RegistrationHandler
	WebSocket    *handlers.WebSocketHandler
}

// SetupRoutes собирает весь HTTP-роутер приложения.
func SetupRoutes(h Handlers, jwtSecret []byte, promRegistry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))

	r.Post("/auth/register", h.Auth.Register)
	r.Post("/auth/login", h.Auth.Login)

	// Трансляция итогов голосования: токен обычно передаётся query-параметром,
	// поэтому подключение не проходит через Authenticate.
	r.Get("/ws/teams/{teamID}/votes", h.WebSocket.ServeTeamVotes)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))

		r.Route("/competitions", func(r chi.Router) {
			r.Get("/", h.Competition.ListCompetitions)
			r.With(middleware.Authorize(models.RoleAdmin)).Post("/", h.Competition.CreateCompetition)

			r.Route("/{competitionID}", func(r chi.Router) {
				r.Get("/", h.Competition.GetCompetition)
				r.With(middleware.Authorize(models.RoleAdmin)).Put("/", h.Competition.UpdateCompetition)
				r.With(middleware.Authorize(models.RoleAdmin)).Patch("/status", h.Competition.UpdateCompetitionStatus)
				r.With(middleware.Authorize(models.RoleAdmin)).Delete("/", h.Competition.DeleteCompetition)
				r.With(middleware.Authorize(models.RoleAdmin)).Post("/logo", h.Competition.UploadLogo)

				r.Route("/phases", func(r chi.Router) {
					r.Get("/", h.Phase.ListPhases)
					r.With(middleware.Authorize(models.RoleAdmin)).Post("/", h.Phase.CreatePhase)
				})

				r.Get("/teams", h.Team.ListTeams)

				r.Route("/registrations", func(r chi.Router) {
					r.Post("/", h.Registration.Register)
					r.With(middleware.Authorize(models.RoleAdmin)).Get("/", h.Registration.List)

					r.Route("/{userID}", func(r chi.Router) {
						r.Get("/", h.Registration.Get)
						r.With(middleware.Authorize(models.RoleAdmin)).Patch("/approve", h.Registration.Approve)
						r.With(middleware.Authorize(models.RoleAdmin)).Delete("/", h.Registration.RemovePlayer)
					})
				})

				r.Post("/self-scores", h.Scoring.SubmitSelfScore)
				r.Post("/ratings", h.Scoring.SubmitPeerRating)

				r.Route("/players/{userID}/proficiency", func(r chi.Router) {
					r.Get("/", h.Scoring.GetProficiency)
					r.With(middleware.Authorize(models.RoleAdmin)).Post("/", h.Scoring.CommitProficiency)
				})
			})
		})

		r.Route("/phases/{phaseID}", func(r chi.Router) {
			r.Get("/", h.Phase.GetPhase)
			r.With(middleware.Authorize(models.RoleAdmin)).Put("/", h.Phase.UpdatePhase)
			r.With(middleware.Authorize(models.RoleAdmin)).Delete("/", h.Phase.DeletePhase)
		})

		r.Route("/teams", func(r chi.Router) {
			r.With(middleware.Authorize(models.RoleAdmin)).Post("/", h.Team.CreateTeam)

			r.Route("/{teamID}", func(r chi.Router) {
				r.Get("/", h.Team.GetTeamByID)
				r.With(middleware.Authorize(models.RoleAdmin)).Put("/", h.Team.UpdateTeam)
				r.With(middleware.Authorize(models.RoleAdmin)).Delete("/", h.Team.DeleteTeam)
				r.Post("/join", h.Team.JoinTeam)
				r.Post("/leave", h.Team.LeaveTeam)

				r.Route("/votes", func(r chi.Router) {
					r.Post("/", h.Voting.CastVote)
					r.Get("/", h.Voting.GetTally)
					r.With(middleware.Authorize(models.RoleAdmin)).Delete("/", h.Voting.ResetVoting)
				})
			})
		})
	})

	return r
}
