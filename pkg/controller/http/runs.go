package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskcascade/pkg/domain/model"
	"github.com/secmon-lab/riskcascade/pkg/usecase"
	"github.com/secmon-lab/riskcascade/pkg/utils/errutil"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// runSummary is a run without its per-risk and per-cascade values
type runSummary struct {
	ID          model.AnalysisRunID      `json:"id"`
	Parameters  model.AnalysisParameters `json:"parameters"`
	Probability model.ConvergenceSummary `json:"probability"`
	Impact      model.ConvergenceSummary `json:"impact"`
	Converged   bool                     `json:"converged"`
	Risks       int                      `json:"risks"`
	Cascades    int                      `json:"cascades"`
	StartedAt   time.Time                `json:"started_at"`
	FinishedAt  time.Time                `json:"finished_at"`
}

func toRunSummary(run *model.AnalysisRun) runSummary {
	return runSummary{
		ID:          run.ID,
		Parameters:  run.Parameters,
		Probability: run.Probability,
		Impact:      run.Impact,
		Converged:   run.Converged(),
		Risks:       len(run.Risks),
		Cascades:    len(run.Cascades),
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
}

type riskResultResponse struct {
	RunID     model.AnalysisRunID         `json:"run_id"`
	Converged bool                        `json:"converged"`
	Risk      *model.RiskCalculation      `json:"risk"`
	Causes    []*model.CascadeCalculation `json:"causes"`
	Effects   []*model.CascadeCalculation `json:"effects"`
}

func (s *Server) listRunsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errutil.HandleHTTP(r.Context(), w, goerr.New("limit must be a positive integer", goerr.V("limit", v)), http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	runs, err := s.analysis.ListRuns(r.Context(), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := struct {
		Runs []runSummary `json:"runs"`
	}{
		Runs: make([]runSummary, len(runs)),
	}
	for i, run := range runs {
		resp.Runs[i] = toRunSummary(run)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) triggerRunHandler(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		errutil.HandleHTTP(r.Context(), w, goerr.New("analysis trigger is throttled"), http.StatusTooManyRequests)
		return
	}

	if err := s.analysis.RunAsync(r.Context()); err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) latestRunHandler(w http.ResponseWriter, r *http.Request) {
	run, err := s.analysis.LatestRun(r.Context())
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (s *Server) getRunHandler(w http.ResponseWriter, r *http.Request) {
	runID := model.AnalysisRunID(chi.URLParam(r, "runID"))

	run, err := s.analysis.GetRun(r.Context(), runID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

func (s *Server) getRiskResultHandler(w http.ResponseWriter, r *http.Request) {
	runID := model.AnalysisRunID(chi.URLParam(r, "runID"))
	riskID, err := strconv.ParseInt(chi.URLParam(r, "riskID"), 10, 64)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid risk ID", goerr.V("risk_id", chi.URLParam(r, "riskID"))), http.StatusBadRequest)
		return
	}

	result, err := s.analysis.GetRiskResult(r.Context(), runID, riskID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, riskResultResponse{
		RunID:     result.RunID,
		Converged: result.Converged,
		Risk:      result.Risk,
		Causes:    result.Causes,
		Effects:   result.Effects,
	})
}

// handleError maps use case errors to HTTP status codes
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrRunNotFound),
		errors.Is(err, usecase.ErrRiskNotInRun),
		errors.Is(err, usecase.ErrNoRunsYet):
		status = http.StatusNotFound
	case errors.Is(err, usecase.ErrRunInProgress):
		status = http.StatusConflict
	}
	errutil.HandleHTTP(r.Context(), w, err, status)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data) //nolint:errcheck // header already committed
}
