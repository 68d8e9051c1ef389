// internal/llm/gateway.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGatewayURL   = "http://mcp-compose-http-proxy:9876"
	defaultGatewayModel = "anthropic/claude-3.5-sonnet"
)

// GatewayCaller reaches the OpenRouter gateway MCP server through the
// mcp-compose HTTP proxy.
type GatewayCaller struct {
	httpClient *http.Client
	proxyURL   string
	apiKey     string
	model      string
	maxTokens  int
}

func NewGatewayCaller(cfg Config) *GatewayCaller {
	proxyURL := strings.TrimRight(cfg.BaseURL, "/")
	if proxyURL == "" {
		proxyURL = defaultGatewayURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultGatewayModel
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &GatewayCaller{
		httpClient: &http.Client{Timeout: timeout},
		proxyURL:   proxyURL,
		apiKey:     cfg.APIKey,
		model:      model,
		maxTokens:  cfg.MaxTokens,
	}
}

func (g *GatewayCaller) CallModel(ctx context.Context, req Request) (Response, error) {
	completionRequest := map[string]interface{}{
		"model":         g.model,
		"system_prompt": req.SystemPrompt,
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": req.UserPrompt,
			},
		},
		"max_tokens":  maxTokensOr(req, g.maxTokens),
		"temperature": 0.1,
	}

	raw, err := g.callGateway(ctx, "create_completion", completionRequest)
	if err != nil {
		return Response{}, fmt.Errorf("failed to get AI completion: %w", err)
	}

	return parseGatewayCompletion(raw)
}

func (g *GatewayCaller) callGateway(ctx context.Context, toolName string, args interface{}) (string, error) {
	url := fmt.Sprintf("%s/openrouter-gateway", g.proxyURL)

	requestData := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]interface{}{
			"name":      toolName,
			"arguments": args,
		},
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("request failed with status %d and couldn't read body: %v", resp.StatusCode, err)
		}
		return "", fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var mcpResponse struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mcpResponse); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if mcpResponse.Error != nil {
		return "", fmt.Errorf("gateway error: %s", mcpResponse.Error.Message)
	}
	if len(mcpResponse.Result.Content) == 0 {
		return "", fmt.Errorf("unexpected response format")
	}

	return mcpResponse.Result.Content[0].Text, nil
}

// parseGatewayCompletion unwraps the gateway's completion envelope. Plain text
// is passed through unchanged.
func parseGatewayCompletion(raw string) (Response, error) {
	var completion struct {
		Content      *string `json:"content"`
		FinishReason string  `json:"finish_reason"`
	}
	if err := json.Unmarshal([]byte(raw), &completion); err != nil || completion.Content == nil {
		if strings.TrimSpace(raw) == "" {
			return Response{}, ErrEmptyResponse
		}
		return Response{Text: raw}, nil
	}

	if strings.TrimSpace(*completion.Content) == "" {
		return Response{}, ErrEmptyResponse
	}

	return Response{
		Text:      *completion.Content,
		Truncated: completion.FinishReason == "length",
	}, nil
}
