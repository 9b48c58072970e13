// Package api exposes the engine boundary over HTTP. It is an in-process
// contract made remote-friendly: every record carries a timestamp and the
// snapshot version, and fields are only ever added, so the audit trail
// stays replayable.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tempohq/tempo/internal/domain"
	"github.com/tempohq/tempo/internal/infra/kernel"
)

// Server is the Tempo HTTP API server.
type Server struct {
	engine         *kernel.Engine
	events         *rate.Limiter
	metricsEnabled bool
	log            zerolog.Logger
}

// NewServer creates an API server. eventsPerSecond bounds the context
// change intake; adapters replaying history get 429s instead of stalling
// the pipeline.
func NewServer(engine *kernel.Engine, eventsPerSecond float64, log zerolog.Logger) *Server {
	if eventsPerSecond <= 0 {
		eventsPerSecond = 10
	}
	return &Server{
		engine: engine,
		events: rate.NewLimiter(rate.Limit(eventsPerSecond), int(eventsPerSecond)*2),
		log:    log.With().Str("component", "api").Logger(),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/plan", s.handlePlan)
		r.Post("/events", s.handleEvent)
		r.Get("/schedule", s.handleSchedule)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/energy", s.handleGetEnergy)
		r.Post("/energy", s.handlePostEnergy)
		r.Post("/delegations/ack", s.handleDelegationAck)
		r.Post("/tasks", s.handleCreateTask)
		r.Post("/tasks/{id}/start", s.handleStartTask)
		r.Post("/tasks/{id}/complete", s.handleCompleteTask)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── LTS ────────────────────────────────────────────────────────────────────

type planRequest struct {
	AvailableMinutes int `json:"available_minutes"`
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid plan request")
		return
	}
	if req.AvailableMinutes <= 0 {
		writeError(w, http.StatusBadRequest, "available_minutes must be positive")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.PlanDay(req.AvailableMinutes))
}

// ─── Disruptions ────────────────────────────────────────────────────────────

type eventResponse struct {
	Dropped    bool                    `json:"dropped"`
	Disruption *domain.DisruptionEvent `json:"disruption,omitempty"`
	Swaps      []domain.SwapOperation  `json:"swaps,omitempty"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if !s.events.Allow() {
		writeError(w, http.StatusTooManyRequests, "event intake rate exceeded")
		return
	}

	var ev domain.ContextChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid context change event")
		return
	}

	d, swaps, err := s.engine.HandleContextChange(ev)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{
		Dropped:    d == nil,
		Disruption: d,
		Swaps:      swaps,
	})
}

// ─── STS / snapshots ────────────────────────────────────────────────────────

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks":    s.engine.Reorder(),
		"taken_at": time.Now().UTC(),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// ─── Energy ─────────────────────────────────────────────────────────────────

func (s *Server) handleGetEnergy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CurrentEnergy())
}

type energyResponse struct {
	Energy    domain.EnergyLevel         `json:"energy"`
	Delegated []domain.DelegationRequest `json:"delegated,omitempty"`
}

func (s *Server) handlePostEnergy(w http.ResponseWriter, r *http.Request) {
	var level domain.EnergyLevel
	if err := json.NewDecoder(r.Body).Decode(&level); err != nil {
		writeError(w, http.StatusBadRequest, "invalid energy level")
		return
	}
	requests := s.engine.UpdateEnergy(level)
	writeJSON(w, http.StatusOK, energyResponse{
		Energy:    s.engine.CurrentEnergy(),
		Delegated: requests,
	})
}

// ─── Delegation ─────────────────────────────────────────────────────────────

func (s *Server) handleDelegationAck(w http.ResponseWriter, r *http.Request) {
	var res domain.DelegationResult
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		writeError(w, http.StatusBadRequest, "invalid delegation result")
		return
	}
	if err := s.engine.AcknowledgeDelegation(res); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var t domain.Task
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "invalid task")
		return
	}
	saved, err := s.engine.AddTask(t)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.StartTask(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	t, err := s.engine.CompleteTask(chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrDelegationNotPending):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrTaskTerminal):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMalformedEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}
