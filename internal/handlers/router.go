package handlers

import (
	"net/http"
	"strings"

	"esusu/internal/config"
	"esusu/internal/middleware"
	"esusu/internal/telemetry"
	"esusu/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Handler struct {
	cfg           config.Config
	accounts      AccountService
	groups        GroupService
	contributions ContributionService
	hub           *websocket.Hub
}

func New(cfg config.Config, accounts AccountService, groups GroupService, contributions ContributionService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:           cfg,
		accounts:      accounts,
		groups:        groups,
		contributions: contributions,
		hub:           hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(h.cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Use(telemetry.Middleware)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Get("/ws/events", h.WSEvents)

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.OpenAccount)
			r.Get("/", h.ListAccounts)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/transactions", h.ListTransactions)
			r.Post("/{id}/deposit", h.Deposit)
			r.Post("/{id}/withdraw", h.Withdraw)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", h.CreateGroup)
			r.Get("/", h.ListGroups)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetGroup)
				r.Patch("/", h.UpdateGroup)
				r.Delete("/", h.DeleteGroup)
				r.Post("/join", h.JoinGroup)
				r.Post("/leave", h.LeaveGroup)
				r.Post("/owner", h.TransferOwnership)
				r.Put("/members/{userID}/role", h.SetMemberRole)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireMember(h.groups))
					r.Get("/members", h.ListMembers)
					r.Get("/contributions", h.ListGroupContributions)
					r.Get("/activity", h.GroupActivity)
				})
			})
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", h.RecordPayment)
			r.Get("/", h.ListPayments)
		})
	})
	return router
}
