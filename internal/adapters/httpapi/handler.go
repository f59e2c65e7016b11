package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	chi "github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"sns-ingest/internal/domain"
	httpinfra "sns-ingest/internal/infra/http"
	"sns-ingest/internal/usecase/commands"
	"sns-ingest/internal/usecase/ingest"
)

// Collector — чтение состояния сборщика.
type Collector interface {
	Stats() ingest.Snapshot
	Status(ctx context.Context) ([]ingest.ProviderCount, error)
}

// Handler обслуживает REST API ручного запуска.
type Handler struct {
	executor  commands.Executor
	collector Collector
	jobs      domain.CommandQueue
	log       zerolog.Logger
}

// NewHandler создаёт обработчик. jobs может быть nil: тогда async недоступен.
func NewHandler(executor commands.Executor, collector Collector, jobs domain.CommandQueue, logger zerolog.Logger) *Handler {
	return &Handler{executor: executor, collector: collector, jobs: jobs, log: logger}
}

type commandRequest struct {
	Arg     string `json:"arg"`
	Session string `json:"session"`
	ChatID  int64  `json:"chat_id"`
	Async   bool   `json:"async"`
}

type commandResponse struct {
	JobID  string `json:"job_id"`
	Action string `json:"action"`
	Reply  string `json:"reply,omitempty"`
	Queued bool   `json:"queued,omitempty"`
}

// Mount регистрирует маршруты под /api/v1.
func (h *Handler) Mount(r chi.Router, token string) {
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpinfra.TokenAuthMiddleware(token))
		api.Get("/stats", h.stats)
		api.Get("/status", h.status)
		api.Post("/commands/{action}", h.command)
	})
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	httpinfra.WriteJSON(w, h.collector.Stats())
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	counts, err := h.collector.Status(r.Context())
	if err != nil {
		h.log.Error().Err(err).Str("request_id", httpinfra.RequestID(r)).Msg("api: не удалось получить состояние")
		httpinfra.WriteError(w, http.StatusInternalServerError, "status unavailable")
		return
	}
	httpinfra.WriteJSON(w, map[string]any{"providers": counts})
}

func (h *Handler) command(w http.ResponseWriter, r *http.Request) {
	action := strings.ToLower(chi.URLParam(r, "action"))
	if !commands.IsKnown(action) {
		httpinfra.WriteError(w, http.StatusNotFound, "unknown action "+action)
		return
	}
	var req commandRequest
	if r.Body != nil {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpinfra.WriteError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	session := req.Session
	if session == "" {
		session = "http"
	}
	job := commands.NewJob(commands.Command{Action: action, Arg: req.Arg}, session, req.ChatID, domain.SourceHTTP)

	if req.Async {
		if h.jobs == nil {
			httpinfra.WriteError(w, http.StatusServiceUnavailable, "queue is not configured")
			return
		}
		if err := h.jobs.Enqueue(r.Context(), job); err != nil {
			h.log.Error().Err(err).Str("action", action).Msg("api: не удалось поставить команду в очередь")
			httpinfra.WriteError(w, http.StatusBadGateway, "enqueue failed")
			return
		}
		httpinfra.WriteJSONStatus(w, http.StatusAccepted, commandResponse{JobID: job.ID, Action: action, Queued: true})
		return
	}
	reply := h.executor.Execute(r.Context(), job)
	httpinfra.WriteJSON(w, commandResponse{JobID: job.ID, Action: action, Reply: reply})
}
