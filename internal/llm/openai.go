// internal/llm/openai.go
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

const defaultOpenAIModel = "gpt-4o-mini"

type OpenAICaller struct {
	client    openai.Client
	model     string
	maxTokens int
}

func NewOpenAICaller(cfg Config) (*OpenAICaller, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("openai caller requires an API key")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAICaller{
		client:    openai.NewClient(opts...),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (c *OpenAICaller) CallModel(ctx context.Context, req Request) (Response, error) {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(req.UserPrompt),
		},
		MaxOutputTokens: openai.Int(int64(maxTokensOr(req, c.maxTokens))),
	}
	if sys := strings.TrimSpace(req.SystemPrompt); sys != "" {
		params.Instructions = openai.String(sys)
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("openai completion failed: %w", err)
	}

	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return Response{}, ErrEmptyResponse
	}

	return Response{
		Text:      text,
		Truncated: string(resp.Status) == "incomplete",
	}, nil
}
