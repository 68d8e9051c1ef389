// internal/llm/gemini.go
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

type GeminiCaller struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func NewGeminiCaller(ctx context.Context, cfg Config) (*GeminiCaller, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("gemini caller requires an API key")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: strings.TrimSpace(cfg.BaseURL)},
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiCaller{client: client, model: model, maxTokens: cfg.MaxTokens}, nil
}

func (c *GeminiCaller) CallModel(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokensOr(req, c.maxTokens)),
	}
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	if req.ResponseMode == ResponseModeJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gemini completion failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return Response{}, ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return Response{}, ErrEmptyResponse
	}

	return Response{
		Text:      sb.String(),
		Truncated: candidate.FinishReason == genai.FinishReasonMaxTokens,
	}, nil
}
