// internal/llm/ollama.go
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// OllamaCaller talks to a local (on-device) model server.
type OllamaCaller struct {
	client    *api.Client
	model     string
	maxTokens int
}

func NewOllamaCaller(cfg Config) (*OllamaCaller, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultOllamaURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", base, err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOllamaModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &OllamaCaller{
		client:    api.NewClient(baseURL, &http.Client{Timeout: timeout}),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (c *OllamaCaller) CallModel(ctx context.Context, req Request) (Response, error) {
	stream := false
	messages := make([]api.Message, 0, 2)
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		messages = append(messages, api.Message{Role: "system", Content: sys})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.UserPrompt})

	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]interface{}{
			"num_predict": maxTokensOr(req, c.maxTokens),
		},
	}
	if req.ResponseMode == ResponseModeJSON {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var sb strings.Builder
	var doneReason string
	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		if resp.Done {
			doneReason = resp.DoneReason
		}
		return nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("ollama completion failed: %w", err)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return Response{}, ErrEmptyResponse
	}

	return Response{Text: sb.String(), Truncated: doneReason == "length"}, nil
}
