package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"negotiation-eval-go/internal/config"
	"negotiation-eval-go/internal/logger"
	"negotiation-eval-go/internal/telemetry"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"no object", "sorry, I cannot help", ""},
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", `Sure! {"a":{"b":2}} hope this helps {"c":3}`, `{"a":{"b":2}}`},
		{"brace in string", `{"text":"use } carefully","n":1}`, `{"text":"use } carefully","n":1}`},
		{"escaped quote", `{"text":"say \"}\" now"}`, `{"text":"say \"}\" now"}`},
		{"unbalanced", `{"a":1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestCompleteJSON(t *testing.T) {
	type answer struct {
		Intent string `json:"intent"`
	}
	ctx := context.Background()

	ok := CompleterFunc(func(context.Context, Request) (string, error) {
		return "here you go ```json\n{\"intent\":\"quoting\"}\n```", nil
	})
	got, err := CompleteJSON[answer](ctx, ok, Request{Site: SiteVendorResponse})
	require.NoError(t, err)
	assert.Equal(t, "quoting", got.Intent)

	failing := CompleterFunc(func(context.Context, Request) (string, error) {
		return "", errors.New("503")
	})
	_, err = CompleteJSON[answer](ctx, failing, Request{Site: SiteVendorResponse})
	assert.Error(t, err)

	prose := CompleterFunc(func(context.Context, Request) (string, error) { return "no json", nil })
	_, err = CompleteJSON[answer](ctx, prose, Request{Site: SiteVendorResponse})
	assert.ErrorIs(t, err, ErrNoJSON)

	badType := CompleterFunc(func(context.Context, Request) (string, error) { return `{"intent":5}`, nil })
	_, err = CompleteJSON[answer](ctx, badType, Request{Site: SiteVendorResponse})
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	fixed := func(s string) Completer {
		return CompleterFunc(func(context.Context, Request) (string, error) { return s, nil })
	}
	r := Router{Default: fixed("default"), Routes: map[Site]Completer{SiteVendorResponse: fixed("vendor")}}

	out, _ := r.Complete(context.Background(), Request{Site: SiteVendorResponse})
	assert.Equal(t, "vendor", out)
	out, _ = r.Complete(context.Background(), Request{Site: SitePersonaExtraction})
	assert.Equal(t, "default", out)

	_, err := Router{}.Complete(context.Background(), Request{Site: SitePersonaExtraction})
	assert.Error(t, err)
}

func TestRequestUserContent(t *testing.T) {
	assert.Equal(t, "ctx", Request{Input: "ctx"}.UserContent())
	assert.Contains(t, Request{Input: "ctx", Schema: "{}"}.UserContent(), "Return ONLY a JSON object")
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()
	for _, site := range []Site{SitePersonaExtraction, SiteTranscriptAnalysis, SiteVendorResponse} {
		out, err := m.Complete(context.Background(), Request{Site: site})
		require.NoError(t, err)
		assert.True(t, json.Valid([]byte(ExtractJSON(out))), site)
	}
	_, err := m.Complete(context.Background(), Request{Site: "other"})
	assert.Error(t, err)
}

func TestNewSelectsProvider(t *testing.T) {
	c, err := New(config.LLM{Provider: config.ProviderMock}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &MockClient{}, c)

	c, err = New(config.LLM{Provider: config.ProviderGateway}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &GatewayClient{}, c)

	c, err = New(config.LLM{Provider: config.ProviderOpenAI, OpenAIKey: "k"}, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)

	_, err = New(config.LLM{Provider: "nope"}, logger.Discard())
	assert.Error(t, err)
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "test",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	})
	return string(b)
}

func TestGatewayClientRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"json_object"`)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, chatResponse("```json\n{\"is_safe\":true}\n```"))
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "key", "m", 2*time.Second, 5*time.Second, logger.Discard())
	out, err := g.Complete(context.Background(), Request{Site: SiteTranscriptAnalysis})
	require.NoError(t, err)
	assert.Equal(t, `{"is_safe":true}`, out)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGatewayClientClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewGatewayClient(srv.URL, "key", "m", time.Second, 5*time.Second, logger.Discard())
	_, err := g.Complete(context.Background(), Request{Site: SiteTranscriptAnalysis})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGatewayClientLogsToInjectedLogger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	var buf bytes.Buffer
	g := NewGatewayClient(url, "key", "m", 100*time.Millisecond, 200*time.Millisecond, logger.NewWithOutput(&buf))
	_, err := g.Complete(context.Background(), Request{Site: SiteVendorResponse})
	require.Error(t, err)
	assert.Contains(t, buf.String(), "llm request failed")
	assert.Contains(t, buf.String(), "llm-gateway")
}

func TestGatewayClientNotConfigured(t *testing.T) {
	_, err := NewGatewayClient("", "", "m", time.Second, time.Second, logger.Discard()).Complete(context.Background(), Request{})
	assert.Error(t, err)
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, chatResponse(`{"intent":"accepting"}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("key", srv.URL+"/", "gpt-4o-mini", 2*time.Second)
	out, err := c.Complete(context.Background(), Request{Site: SiteVendorResponse, System: "s", Input: "i"})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"accepting"}`, out)
}

func TestInstrumentCountsFailures(t *testing.T) {
	m := telemetry.NewMetrics()
	site := "instrument_test"
	reqs := testutil.ToFloat64(m.CompletionRequests.WithLabelValues(site))
	fails := testutil.ToFloat64(m.CompletionFailures.WithLabelValues(site))

	c := Instrument(CompleterFunc(func(context.Context, Request) (string, error) {
		return "", errors.New("down")
	}), m)
	_, err := c.Complete(context.Background(), Request{Site: Site(site)})
	assert.Error(t, err)

	assert.Equal(t, reqs+1, testutil.ToFloat64(m.CompletionRequests.WithLabelValues(site)))
	assert.Equal(t, fails+1, testutil.ToFloat64(m.CompletionFailures.WithLabelValues(site)))
}
