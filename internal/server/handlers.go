package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bobmcallan/psxlens/internal/common"
	"github.com/bobmcallan/psxlens/internal/interfaces"
	"github.com/bobmcallan/psxlens/internal/models"
)

// handleHealth responds to GET/HEAD /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVersion responds to GET/HEAD /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// analyzeRequest is the POST /api/analyze body.
type analyzeRequest struct {
	Symbol          string              `json:"symbol"`
	ExtractionModel string              `json:"extraction_model"`
	AnalysisModel   string              `json:"analysis_model"`
	UserProfile     *models.UserProfile `json:"user_profile,omitempty"`
	StockContext    string              `json:"stock_context,omitempty"`
}

func (req *analyzeRequest) validate() error {
	if strings.TrimSpace(req.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	return nil
}

// handleAnalyze runs a statement analysis synchronously and returns the
// outcome. Long-running; clients wanting progress should submit a job and
// follow the state stream instead.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req analyzeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := s.app.StatementService.AnalyzeStock(r.Context(), req.Symbol, interfaces.AnalyzeOptions{
		ExtractionModel: req.ExtractionModel,
		AnalysisModel:   req.AnalysisModel,
		UserProfile:     req.UserProfile,
		StockContext:    req.StockContext,
	})
	if err != nil {
		// The outcome still carries the degraded report and error detail.
		WriteJSON(w, http.StatusUnprocessableEntity, outcome)
		return
	}

	WriteJSON(w, http.StatusOK, outcome)
}

// handleCheckLatest reports whether the newest statement for a symbol already
// has a cached analysis.
func (s *Server) handleCheckLatest(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	outcome, err := s.app.StatementService.CheckLatestReport(r.Context(), symbol, interfaces.AnalyzeOptions{
		ExtractionModel: r.URL.Query().Get("extraction_model"),
		AnalysisModel:   r.URL.Query().Get("analysis_model"),
	})
	if err != nil {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, outcome)
}

// handleJobSubmit queues an analysis job and returns its id immediately.
func (s *Server) handleJobSubmit(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req analyzeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := &models.AnalysisJob{
		Symbol:          strings.ToUpper(strings.TrimSpace(req.Symbol)),
		ExtractionModel: req.ExtractionModel,
		AnalysisModel:   req.AnalysisModel,
		UserProfile:     req.UserProfile,
	}

	if err := s.app.JobManager.Submit(job); err != nil {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

// handleJobStatus responds to GET /api/jobs/{id}.
func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	job, ok := s.app.JobManager.Get(id)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// stateQuery extracts the symbol and normalized model pair from query
// parameters. Model ids are normalized so "auto" maps onto the directory the
// pipeline actually wrote.
func (s *Server) stateQuery(r *http.Request) (symbol, extractionModel, analysisModel string, err error) {
	symbol = r.URL.Query().Get("symbol")
	if symbol == "" {
		return "", "", "", fmt.Errorf("symbol query parameter is required")
	}
	catalog := s.app.Config.Models
	extractionModel = catalog.Normalize(r.URL.Query().Get("extraction_model"), common.RoleExtraction)
	analysisModel = catalog.Normalize(r.URL.Query().Get("analysis_model"), common.RoleAnalysis)
	return strings.ToUpper(symbol), extractionModel, analysisModel, nil
}

// handleStates returns the current pipeline snapshots for a symbol and model
// pair.
func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol, extractionModel, analysisModel, err := s.stateQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	overview, err := s.app.StateReader.GetCurrentStates(symbol, extractionModel, analysisModel)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, overview)
}

// handleStateStream streams pipeline progress as server-sent events until the
// run completes, times out, or the client disconnects.
func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	symbol, extractionModel, analysisModel, err := s.stateQuery(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events, err := s.app.StateReader.StreamStates(r.Context(), symbol, extractionModel, analysisModel)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to marshal state event")
			continue
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
		flusher.Flush()
	}
}
