// Package handlers implements the JSON API over the ledger, the chat
// intent dispatcher and the export queue.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/api/middleware"
	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/report"
)

// Ledger is the read side of the coordinator.
type Ledger interface {
	Snapshot(ctx context.Context) (report.Snapshot, error)
}

// LedgerHandler serves read-only ledger views.
type LedgerHandler struct {
	ledger Ledger
	log    zerolog.Logger
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(l Ledger, log zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledger: l, log: log}
}

// ListTransactions handles GET /api/ledger. Optional query parameters:
// q (note keyword), days and kind (income|expense).
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	var (
		days int
		kind *domain.Kind
	)
	if s := query.Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid days")
			return
		}
		days = n
	}
	if s := query.Get("kind"); s != "" {
		k, ok := domain.ParseKind(strings.ToLower(s))
		if !ok {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid kind")
			return
		}
		kind = &k
	}

	snap, err := h.ledger.Snapshot(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read ledger")
		return
	}

	txs := snap.Transactions()
	if q := query.Get("q"); q != "" {
		txs = report.Search(txs, q)
	}
	switch {
	case days > 0:
		txs = report.FilterByWindow(txs, snap.TakenAt, days, kind).Transactions
	case kind != nil:
		var only []domain.Transaction
		for _, t := range txs {
			if t.Kind == *kind {
				only = append(only, t)
			}
		}
		txs = only
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
		"totals":       report.ComputeTotals(txs),
	})
}

// ListAccounts handles GET /api/accounts.
func (h *LedgerHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ledger.Snapshot(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list accounts")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list accounts")
		return
	}

	accounts := snap.Accounts
	if accounts == nil {
		accounts = []domain.Account{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
		"total":    snap.Balance,
	})
}

// Snapshot handles GET /api/snapshot.
func (h *LedgerHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ledger.Snapshot(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to take snapshot")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to take snapshot")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, snap)
}

// Audit handles GET /api/audit. It replays the ledger against each account
// baseline and lists the accounts whose stored balance differs.
func (h *LedgerHandler) Audit(w http.ResponseWriter, r *http.Request) {
	snap, err := h.ledger.Snapshot(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to audit ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to audit ledger")
		return
	}

	drift := snap.Audit()
	if drift == nil {
		drift = []report.Drift{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"drift":      drift,
		"consistent": len(drift) == 0,
	})
}

// Dispatcher runs chat requests.
type Dispatcher interface {
	HandleText(ctx context.Context, req bot.Request, text string) bot.Reply
	HandleCallback(ctx context.Context, req bot.Request, data string) bot.Reply
}

// IntentsHandler exposes the chat dispatcher over HTTP.
type IntentsHandler struct {
	bot Dispatcher
	log zerolog.Logger
}

// NewIntentsHandler creates a new intents handler.
func NewIntentsHandler(d Dispatcher, log zerolog.Logger) *IntentsHandler {
	return &IntentsHandler{bot: d, log: log}
}

// IntentRequest is the body of POST /api/intents. Exactly one of Text
// and Callback is set.
type IntentRequest struct {
	ChatID     int64  `json:"chat_id"`
	UserID     int64  `json:"user_id"`
	Originator string `json:"originator"`
	Text       string `json:"text,omitempty"`
	Callback   string `json:"callback,omitempty"`
}

// Dispatch handles POST /api/intents.
func (h *IntentsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ChatID == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "chat_id is required")
		return
	}
	if (req.Text == "") == (req.Callback == "") {
		middleware.WriteError(w, http.StatusBadRequest, "exactly one of text and callback is required")
		return
	}

	breq := bot.Request{ChatID: req.ChatID, UserID: req.UserID, Originator: req.Originator}
	var reply bot.Reply
	if req.Text != "" {
		reply = h.bot.HandleText(r.Context(), breq, req.Text)
	} else {
		reply = h.bot.HandleCallback(r.Context(), breq, req.Callback)
	}

	middleware.WriteJSON(w, http.StatusOK, reply)
}

// ExportsHandler queues exports and reports on them.
type ExportsHandler struct {
	publisher jobs.Publisher
	store     jobs.JobStore
	log       zerolog.Logger
}

// NewExportsHandler creates a new exports handler.
func NewExportsHandler(publisher jobs.Publisher, store jobs.JobStore, log zerolog.Logger) *ExportsHandler {
	return &ExportsHandler{publisher: publisher, store: store, log: log}
}

// Create handles POST /api/exports. An empty body exports to every sink.
func (h *ExportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Sinks       []string `json:"sinks"`
		ChatID      int64    `json:"chat_id"`
		RequestedBy string   `json:"requested_by"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if req.RequestedBy == "" {
		req.RequestedBy = "api"
	}

	job := &jobs.ExportJob{
		ChatID:      req.ChatID,
		RequestedBy: req.RequestedBy,
		Sinks:       req.Sinks,
	}
	if err := h.publisher.PublishExport(r.Context(), job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue export job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue export job")
		return
	}

	h.log.Info().Str("job_id", job.JobID).Strs("sinks", job.Sinks).Msg("Export job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// Get handles GET /api/exports/{id}.
func (h *ExportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		h.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// List handles GET /api/exports.
func (h *ExportsHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		Status: jobs.JobStatus(query.Get("status")),
	}

	if s := query.Get("chat_id"); s != "" {
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			filter.ChatID = id
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	if jobsList == nil {
		jobsList = []*jobs.ExportJob{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
