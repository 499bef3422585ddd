package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"negotiation-eval-go/internal/logger"
)

// GatewayClient talks to an OpenAI-compatible chat completions gateway over
// plain HTTP with exponential retry.
type GatewayClient struct {
	url      string
	apiKey   string
	model    string
	timeout  time.Duration
	maxRetry time.Duration
	http     *http.Client
	log      *logger.Logger
}

func NewGatewayClient(url, apiKey, model string, timeout, maxRetry time.Duration, log *logger.Logger) *GatewayClient {
	return &GatewayClient{
		url:      url,
		apiKey:   apiKey,
		model:    model,
		timeout:  timeout,
		maxRetry: maxRetry,
		http:     &http.Client{Timeout: timeout},
		log:      log,
	}
}

func (g *GatewayClient) Complete(ctx context.Context, req Request) (string, error) {
	if g.url == "" || g.apiKey == "" {
		return "", errors.New("llm gateway not configured")
	}
	log := g.log.Component("llm-gateway").WithField("site", req.Site)

	reqBody := map[string]any{
		"model": g.model,
		"messages": []map[string]string{
			{"role": "system", "content": req.System},
			{"role": "user", "content": req.UserContent()},
		},
		"temperature":     req.Temperature,
		"response_format": map[string]string{"type": "json_object"},
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode gateway request: %w", err)
	}

	var content string
	var lastErr error
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, g.url, bytes.NewReader(data))
		if err != nil {
			return backoff.Permanent(err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := g.http.Do(httpReq)
		if err != nil {
			lastErr = err
			log.WithError(err).Warn("llm request failed")
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		log.WithField("http_status", resp.StatusCode).Debug("llm raw response received")

		if resp.StatusCode >= 400 {
			lastErr = fmt.Errorf("llm gateway status %d: %s", resp.StatusCode, truncate(string(body), 200))
			if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				// client errors will not fix themselves
				return backoff.Permanent(lastErr)
			}
			return lastErr
		}

		// choices[0].message.content first, then any JSON in the raw body
		if inner := contentFromChoices(body); inner != "" {
			content = inner
			return nil
		}
		if fallback := ExtractJSON(string(body)); fallback != "" {
			content = fallback
			return nil
		}
		lastErr = ErrNoJSON
		return lastErr
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = g.maxRetry
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return "", fmt.Errorf("llm gateway: %w", lastErr)
	}
	return content, nil
}

// contentFromChoices reads openai-style choices[0].message.content.
func contentFromChoices(body []byte) string {
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Choices) == 0 {
		return ""
	}
	return ExtractJSON(parsed.Choices[0].Message.Content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
