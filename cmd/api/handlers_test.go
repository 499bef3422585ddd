package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-eval-go/internal/evalmetrics"
	"negotiation-eval-go/internal/llm"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/persona"
	"negotiation-eval-go/internal/pipeline"
	"negotiation-eval-go/internal/simulator"
	"negotiation-eval-go/internal/store"
	"negotiation-eval-go/internal/telemetry"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()
	tpl, err := persona.DefaultTemplates()
	require.NoError(t, err)
	c := llm.Router{
		Default: llm.NewMockClient(),
		Routes:  map[llm.Site]llm.Completer{llm.SiteVendorResponse: simulator.ScriptedVendor{}},
	}
	log := logger.Discard()
	p := pipeline.New(pipeline.Deps{
		LLM:       c,
		Templates: tpl,
		Store:     store.NewMemoryStore(),
		Log:       log,
		Metrics:   telemetry.NewMetrics(),
	})
	return newServer(p, log).routes()
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHealthz(t *testing.T) {
	w := do(t, testServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestSimulateAndEvaluate(t *testing.T) {
	h := testServer(t)
	w := do(t, h, http.MethodPost, "/simulate", `{"size":10,"evaluate":true,"notes":"api"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res simulateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.Batch.Results, 10)
	require.NotNil(t, res.Eval)
	assert.Equal(t, 10, res.Eval.Run.Metrics.TotalCalls)
	assert.True(t, res.Eval.Persisted)

	w = do(t, h, http.MethodGet, "/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var runs []evalmetrics.EvalRunResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, res.Eval.Run.ID, runs[0].ID)

	w = do(t, h, http.MethodGet, "/runs/"+runs[0].ID+"/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Negotiation Bot Evaluation"))
}

func TestSimulateRejectsBadSize(t *testing.T) {
	w := do(t, testServer(t), http.MethodPost, "/simulate", `{"size":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvalPostedCalls(t *testing.T) {
	body := `{"calls":[
		{"call_id":"a","timestamp":"2025-03-10T09:00:00Z","status":"completed","quoted_price":3500,"negotiated_price":3200},
		{"call_id":"b","timestamp":"2025-03-11T09:00:00Z","status":"no_answer"}
	],"period":"day"}`
	w := do(t, testServer(t), http.MethodPost, "/eval", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var rep pipeline.EvalReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, 2, rep.Run.Metrics.TotalCalls)
	assert.Equal(t, 50, rep.Run.Metrics.QuoteObtainedRate)
	assert.Len(t, rep.Periods, 2)
}

func TestEvalErrors(t *testing.T) {
	h := testServer(t)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/eval", `{"period":"year"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/eval", `{`).Code)
	// call history is empty
	assert.Equal(t, http.StatusUnprocessableEntity, do(t, h, http.MethodPost, "/eval", `{"min_calls":1}`).Code)
}

func TestUnknownRun(t *testing.T) {
	h := testServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/runs/missing/report", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/runs/a/compare/b", "").Code)
}
