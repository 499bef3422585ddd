// Package llm is the narrow completion capability the eval pipeline talks
// to: prompt in, JSON text out, explicit error on failure. Call sites own
// their schema and their fallback; nothing here retries past the client's
// own transport policy.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"negotiation-eval-go/internal/config"
	"negotiation-eval-go/internal/logger"
)

// Site names a completion call site. It selects mock responses, routes and
// metric labels.
type Site string

const (
	SitePersonaExtraction  Site = "persona_extraction"
	SiteVendorResponse     Site = "vendor_response"
	SiteTranscriptAnalysis Site = "transcript_analysis"
)

var ErrNoJSON = errors.New("no JSON object in completion output")

type Request struct {
	Site        Site
	System      string
	Input       string // structured context for this call
	Schema      string // JSON shape the answer must follow
	Temperature float64
}

// UserContent is the user message sent to chat-style providers.
func (r Request) UserContent() string {
	if r.Schema == "" {
		return r.Input
	}
	return r.Input + "\n\nReturn ONLY a JSON object matching this schema:\n" + r.Schema
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// CompleteJSON runs req and decodes the first JSON object in the answer.
func CompleteJSON[T any](ctx context.Context, c Completer, req Request) (T, error) {
	var out T
	raw, err := c.Complete(ctx, req)
	if err != nil {
		return out, fmt.Errorf("%s completion: %w", req.Site, err)
	}
	obj := ExtractJSON(raw)
	if obj == "" {
		return out, fmt.Errorf("%s completion: %w", req.Site, ErrNoJSON)
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return out, fmt.Errorf("%s completion: decode: %w", req.Site, err)
	}
	return out, nil
}

// Router sends each site to its own completer, falling back to Default.
type Router struct {
	Default Completer
	Routes  map[Site]Completer
}

func (r Router) Complete(ctx context.Context, req Request) (string, error) {
	if c, ok := r.Routes[req.Site]; ok {
		return c.Complete(ctx, req)
	}
	if r.Default == nil {
		return "", fmt.Errorf("no completer for site %s", req.Site)
	}
	return r.Default.Complete(ctx, req)
}

// New builds the completer selected by cfg.Provider.
func New(cfg config.LLM, log *logger.Logger) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderGateway:
		return NewGatewayClient(cfg.GatewayURL, cfg.APIKey, cfg.Model, cfg.Timeout, cfg.MaxRetry, log), nil
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBase, cfg.Model, cfg.Timeout), nil
	case config.ProviderMock:
		return NewMockClient(), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// ExtractJSON finds the first balanced JSON object in s after stripping
// markdown fences. Braces inside string literals are skipped.
func ExtractJSON(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	for _, r := range []string{"```json", "```JSON", "```"} {
		s = strings.ReplaceAll(s, r, "")
	}

	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1])
			}
		}
	}
	return ""
}
