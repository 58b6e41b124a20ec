package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/randalmurphal/stepgraph/internal/workflows"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/query"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/registry"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/signal"
	"github.com/randalmurphal/stepgraph/pkg/stepgraph/state"
)

var errBadRequest = errors.New("bad request")

type runRequest struct {
	ThreadID string                     `json:"thread_id"`
	Input    map[string]json.RawMessage `json:"input"`
}

type signalRequest struct {
	Workflow string                     `json:"workflow"`
	Field    string                     `json:"field"`
	Label    string                     `json:"label"`
	Sender   string                     `json:"sender"`
	Input    map[string]json.RawMessage `json:"input"`
}

type gateInfo struct {
	Field  string   `json:"field"`
	Labels []string `json:"labels"`
}

type workflowInfo struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Inputs      []string            `json:"inputs"`
	Steps       []string            `json:"steps"`
	Gates       map[string]gateInfo `json:"gates,omitempty"`
	Mermaid     string              `json:"mermaid,omitempty"`
}

type queryResponse struct {
	ThreadID string `json:"thread_id"`
	Query    string `json:"query"`
	Value    any    `json:"value"`
}

func describe(w *workflows.Workflow) workflowInfo {
	info := workflowInfo{
		Name:        w.Name,
		Description: w.Description,
		Inputs:      w.Inputs,
	}
	for _, id := range w.Graph.StepIDs() {
		info.Steps = append(info.Steps, string(id))
	}
	for gate, field := range w.Gates() {
		if info.Gates == nil {
			info.Gates = make(map[string]gateInfo)
		}
		info.Gates[string(gate)] = gateInfo{Field: field, Labels: w.Labels(gate)}
	}
	return info
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listWorkflows(w http.ResponseWriter, _ *http.Request) {
	var out []workflowInfo
	for _, name := range s.runner.Catalog.Keys() {
		wf, err := s.runner.Workflow(name)
		if err != nil {
			continue
		}
		out = append(out, describe(wf))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"workflows": out})
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := s.runner.Workflow(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	info := describe(wf)
	info.Mermaid = wf.Graph.Mermaid()
	s.writeJSON(w, http.StatusOK, info)
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	wf, err := s.runner.Workflow(name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %w", errBadRequest, err))
		return
	}
	input, err := wf.Schema().DecodeUpdate(req.Input)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	wf, result, err := s.runner.Run(r.Context(), name, req.ThreadID, input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, workflows.NewReport(wf, result))
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	infos, err := s.runner.Store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"threads": infos})
}

// getThread returns the thread snapshot, or the value of query q when set.
func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query().Get("q")
	if q == "" {
		snap, err := s.queries.Snapshot(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, snap)
		return
	}

	v, err := s.queries.Execute(r.Context(), id, q, r.URL.Query().Get("arg"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, queryResponse{ThreadID: id, Query: q, Value: v})
}

// sendSignal resumes a paused thread. An empty field defaults to the
// signal field of the gate the thread waits at.
func (s *Server) sendSignal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: invalid request body: %w", errBadRequest, err))
		return
	}
	if req.Workflow == "" {
		s.writeError(w, fmt.Errorf("%w: workflow is required", errBadRequest))
		return
	}
	wf, err := s.runner.Workflow(req.Workflow)
	if err != nil {
		s.writeError(w, err)
		return
	}

	gate, err := s.runner.PendingGate(r.Context(), wf, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	field := wf.Graph.SignalField(gate)
	if req.Field != "" && req.Field != field {
		s.writeError(w, fmt.Errorf("%w: gate %s reads %s, not %s", errBadRequest, gate, field, req.Field))
		return
	}

	input, err := wf.Schema().DecodeUpdate(req.Input)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	sig := signal.New(id, wf.Name, field, req.Label).WithInput(input).WithSender(req.Sender)
	out, err := s.signals.Send(r.Context(), sig)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.runner.Store.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.signals.Forget(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	var (
		notFound *registry.NotFoundError[string]
		unknown  *state.UnknownFieldError
		mismatch *state.TypeMismatchError
		routing  *stepgraph.RoutingError
	)
	switch {
	case errors.As(err, &notFound),
		errors.Is(err, query.ErrThreadNotFound),
		errors.Is(err, query.ErrQueryNotFound),
		errors.Is(err, query.ErrFieldNotFound):
		return http.StatusNotFound
	case errors.Is(err, workflows.ErrNotPaused):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, signal.ErrInvalidSignal),
		errors.As(err, &unknown),
		errors.As(err, &mismatch),
		errors.As(err, &routing):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
