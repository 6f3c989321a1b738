// internal/server/server.go
package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/common/observability"
	"admission-orchestrator/internal/orchestrator"
	"admission-orchestrator/internal/workflow"
)

// Server is the thin HTTP layer over the orchestrator. Handlers decode,
// delegate and encode; all business rules live behind the orchestrator.
type Server struct {
	orch   *orchestrator.Orchestrator
	obs    *observability.Observability
	logger logger.Logger
}

func New(orch *orchestrator.Orchestrator, obs *observability.Observability, log logger.Logger) *Server {
	return &Server{
		orch:   orch,
		obs:    obs,
		logger: log.WithFields(map[string]interface{}{"component": "http"}),
	}
}

// Router mounts all endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/applications", s.handleIntake)
		r.Get("/applications", s.handleListApplications)
		r.Get("/applications/{id}", s.handleGetApplication)
		r.Get("/applications/{id}/transitions", s.handleLegalTransitions)
		r.Post("/applications/{id}/transitions/{name}", s.handleInvoke)
		r.Post("/applications/{id}/loan-request", s.handleLoanRequest)
		r.Get("/applications/{id}/notifications", s.handleApplicationNotifications)
		r.Get("/notifications", s.handleAllNotifications)
		r.Get("/stats", s.handleStats)
		r.Post("/director/query", s.handleDirectorQuery)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	app, err := s.orch.Intake(r.Context(), raw)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (s *Server) handleListApplications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Snapshot())
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	app, err := s.orch.Application(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleLegalTransitions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	legal, err := s.orch.LegalTransitions(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if legal == nil {
		legal = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"transitions": legal})
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "name")

	ctx := r.Context()
	if s.obs != nil {
		var span trace.Span
		ctx, span = s.obs.StartTransition(ctx, name)
		defer span.End()
	}

	start := time.Now()
	res, err := s.orch.Invoke(ctx, id, name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.obs != nil {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("outcome", string(res.Outcome)))
		s.obs.RecordTransition(ctx, name, string(res.Outcome))
		s.obs.RecordTransitionDuration(ctx, name, time.Since(start))
	}
	if res.Outcome == workflow.OutcomeInvalid {
		writeJSON(w, http.StatusConflict, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type loanRequestPayload struct {
	Amount float64 `json:"amount"`
	Reason string  `json:"reason"`
}

func (s *Server) handleLoanRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var payload loanRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"})
		return
	}
	if payload.Amount < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must not be negative"})
		return
	}

	app, err := s.orch.SubmitLoanRequest(r.Context(), id, payload.Amount, payload.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) handleApplicationNotifications(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	history, err := s.orch.Notifications(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleAllNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.AllNotifications())
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Stats())
}

type directorQueryPayload struct {
	Question string `json:"question"`
}

func (s *Server) handleDirectorQuery(w http.ResponseWriter, r *http.Request) {
	var payload directorQueryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Question == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return
	}
	answer := s.orch.AnswerQuery(r.Context(), payload.Question)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid application id"})
		return 0, false
	}
	return id, true
}
