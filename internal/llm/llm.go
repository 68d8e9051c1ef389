// internal/llm/llm.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ResponseMode string

const (
	ResponseModeText ResponseMode = "text"
	ResponseModeJSON ResponseMode = "json"
)

// Request is a single-turn model call.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	ResponseMode ResponseMode
}

type Response struct {
	Text      string
	Truncated bool
}

// Caller is the only capability the orchestrator needs from a language model.
type Caller interface {
	CallModel(ctx context.Context, req Request) (Response, error)
}

// CallerFunc adapts a plain function to Caller.
type CallerFunc func(ctx context.Context, req Request) (Response, error)

func (f CallerFunc) CallModel(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

var (
	ErrEmptyResponse   = errors.New("model returned an empty response")
	ErrUnknownProvider = errors.New("unknown model provider")
)

const defaultMaxTokens = 1024

// Config selects and configures one backend.
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// NewFromConfig builds the Caller for cfg.Provider.
func NewFromConfig(ctx context.Context, cfg Config) (Caller, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "anthropic":
		return NewAnthropicCaller(cfg)
	case "openai":
		return NewOpenAICaller(cfg)
	case "gemini", "google":
		return NewGeminiCaller(ctx, cfg)
	case "ollama":
		return NewOllamaCaller(cfg)
	case "gateway", "openrouter":
		return NewGatewayCaller(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

func maxTokensOr(req Request, fallback int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if fallback > 0 {
		return fallback
	}
	return defaultMaxTokens
}
