package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/pipeline"
	"negotiation-eval-go/internal/simulator"
	"negotiation-eval-go/internal/store"
	"negotiation-eval-go/internal/types"
)

// maxSimulationSize bounds one /simulate request.
const maxSimulationSize = 500

type server struct {
	p   *pipeline.Pipeline
	log *logger.Logger
}

func newServer(p *pipeline.Pipeline, log *logger.Logger) *server {
	return &server{p: p, log: log}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /personas", s.handlePersonas)
	mux.HandleFunc("POST /simulate", s.handleSimulate)
	mux.HandleFunc("POST /eval", s.handleEval)
	mux.HandleFunc("GET /runs", s.handleRuns)
	mux.HandleFunc("GET /runs/{id}/report", s.handleRunReport)
	mux.HandleFunc("GET /runs/{id}/compare/{prev}", s.handleCompare)
	return mux
}

type personasRequest struct {
	Calls []types.CallRecord `json:"calls"`
}

func (s *server) handlePersonas(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "personas")
	var req personasRequest
	if !decode(w, r, &req) {
		return
	}
	start := time.Now()
	res := s.p.BuildPersonas(r.Context(), req.Calls)
	reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("refined", len(res.Refined)).Info("personas built")
	writeJSON(w, http.StatusOK, res)
}

type simulateRequest struct {
	Size        int                    `json:"size"`
	Concurrency int                    `json:"concurrency"`
	Market      *simulator.MarketPrice `json:"market,omitempty"`
	Evaluate    bool                   `json:"evaluate"`
	Notes       string                 `json:"notes"`
}

type simulateResponse struct {
	Batch simulator.BatchResult `json:"batch"`
	Eval  *pipeline.EvalReport  `json:"eval,omitempty"`
}

func (s *server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "simulate")
	req := simulateRequest{Size: 20}
	if !decode(w, r, &req) {
		return
	}
	if req.Size < 1 || req.Size > maxSimulationSize {
		http.Error(w, fmt.Sprintf("size must be between 1 and %d", maxSimulationSize), http.StatusBadRequest)
		return
	}
	cfg := simulator.BatchConfig{Size: req.Size, Concurrency: req.Concurrency}
	if req.Market != nil {
		cfg.Market = *req.Market
	}

	start := time.Now()
	res, err := s.p.Simulate(r.Context(), cfg)
	if err != nil {
		reqLog.WithError(err).Warn("simulation failed")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	out := simulateResponse{Batch: res}
	if req.Evaluate {
		rep, err := s.p.Evaluate(r.Context(), res.CallRecords(start), pipeline.EvalRequest{Notes: req.Notes})
		if err != nil {
			reqLog.WithError(err).Warn("scoring simulated calls failed")
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		out.Eval = &rep
	}
	reqLog.WithField("duration_ms", time.Since(start).Milliseconds()).
		WithField("failed", res.Failed).Info("simulation finished")
	writeJSON(w, http.StatusOK, out)
}

type evalRequest struct {
	Calls              []types.CallRecord `json:"calls,omitempty"`
	From               *time.Time         `json:"from,omitempty"`
	To                 *time.Time         `json:"to,omitempty"`
	Vendor             string             `json:"vendor,omitempty"`
	MinCalls           int                `json:"min_calls,omitempty"`
	AnalyzeTranscripts bool               `json:"analyze_transcripts"`
	Period             string             `json:"period,omitempty"`
	Notes              string             `json:"notes,omitempty"`
	Compare            bool               `json:"compare"`
}

// handleEval scores the posted calls, or call history when none are posted.
func (s *server) handleEval(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "eval")
	var body evalRequest
	if !decode(w, r, &body) {
		return
	}
	req := pipeline.EvalRequest{
		Config: evalmetrics.RunConfig{
			From:               body.From,
			To:                 body.To,
			PersonaFilter:      body.Vendor,
			MinCalls:           body.MinCalls,
			AnalyzeTranscripts: body.AnalyzeTranscripts,
		},
		Notes:   body.Notes,
		Compare: body.Compare,
	}
	if body.Period != "" {
		period, err := evalmetrics.ParsePeriod(body.Period)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Period = period
	}

	var (
		rep pipeline.EvalReport
		err error
	)
	if len(body.Calls) > 0 {
		rep, err = s.p.Evaluate(r.Context(), body.Calls, req)
	} else {
		rep, err = s.p.EvaluateStored(r.Context(), req)
	}
	if err != nil {
		reqLog.WithError(err).Warn("eval failed")
		status := http.StatusInternalServerError
		if errors.Is(err, evalmetrics.ErrInsufficientCalls) {
			status = http.StatusUnprocessableEntity
		}
		http.Error(w, err.Error(), status)
		return
	}
	reqLog.WithField("run_id", rep.Run.ID).WithField("persisted", rep.Persisted).Info("eval run complete")
	writeJSON(w, http.StatusOK, rep)
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.p.Store().ListRuns(r.Context(), limit)
	if err != nil {
		s.log.WithRequest(r).WithError(err).Error("list runs failed")
		http.Error(w, "could not list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []evalmetrics.EvalRunResult{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	md, err := s.p.RunReport(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	fmt.Fprint(w, md)
}

func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	cmp, md, err := s.p.CompareRuns(r.Context(), r.PathValue("id"), r.PathValue("prev"))
	if err != nil {
		s.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comparison": cmp, "report": md})
}

func (s *server) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.log.WithRequest(r).WithError(err).Error("store lookup failed")
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// decode reads a JSON body; an empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
