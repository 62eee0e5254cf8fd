// Package api assembles the JSON HTTP API.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/api/handlers"
	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/jobs"
)

// Deps are the services the API serves. Exports and Jobs may be nil, in
// which case the export routes are not mounted.
type Deps struct {
	Ledger   handlers.Ledger
	Bot      handlers.Dispatcher
	Exports  jobs.Publisher
	Jobs     jobs.JobStore
	APIToken string
	Now      func() time.Time
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps, log zerolog.Logger) http.Handler {
	if d.Now == nil {
		d.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   d.Now().Format(time.RFC3339),
		})
	})

	ledger := handlers.NewLedgerHandler(d.Ledger, log)
	intents := handlers.NewIntentsHandler(d.Bot, log)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(d.APIToken))

		r.Get("/ledger", ledger.ListTransactions)
		r.Get("/accounts", ledger.ListAccounts)
		r.Get("/snapshot", ledger.Snapshot)
		r.Get("/audit", ledger.Audit)
		r.Post("/intents", intents.Dispatch)

		if d.Exports != nil && d.Jobs != nil {
			exports := handlers.NewExportsHandler(d.Exports, d.Jobs, log)
			r.Route("/exports", func(r chi.Router) {
				r.Get("/", exports.List)
				r.Post("/", exports.Create)
				r.Get("/{id}", exports.Get)
			})
		}
	})

	return r
}
