package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGatewayCompletion(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantText  string
		truncated bool
		wantErr   error
	}{
		{
			name:     "completion envelope",
			raw:      `{"content":"[{\"label\":\"Eggs\"}]","finish_reason":"stop"}`,
			wantText: `[{"label":"Eggs"}]`,
		},
		{
			name:      "truncated envelope",
			raw:       `{"content":"[{\"label\":","finish_reason":"length"}`,
			wantText:  `[{"label":`,
			truncated: true,
		},
		{
			name:     "plain text passes through",
			raw:      "here are your items",
			wantText: "here are your items",
		},
		{
			name:    "empty content",
			raw:     `{"content":"  "}`,
			wantErr: ErrEmptyResponse,
		},
		{
			name:    "empty raw",
			raw:     "",
			wantErr: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := parseGatewayCompletion(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Equal(t, tt.truncated, resp.Truncated)
		})
	}
}

func TestGatewayCallerCallModel(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openrouter-gateway", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]interface{}{
				"content": []map[string]interface{}{
					{"type": "text", "text": `{"content":"ok","finish_reason":"stop"}`},
				},
			},
		})
	}))
	defer srv.Close()

	caller := NewGatewayCaller(Config{BaseURL: srv.URL, APIKey: "secret", Model: "test/model"})
	resp, err := caller.CallModel(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "hi", MaxTokens: 64})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)

	assert.Equal(t, "tools/call", got["method"])
	params := got["params"].(map[string]interface{})
	assert.Equal(t, "create_completion", params["name"])
	args := params["arguments"].(map[string]interface{})
	assert.Equal(t, "test/model", args["model"])
	assert.Equal(t, "sys", args["system_prompt"])
	assert.EqualValues(t, 64, args["max_tokens"])
}

func TestGatewayCallerStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	caller := NewGatewayCaller(Config{BaseURL: srv.URL})
	_, err := caller.CallModel(context.Background(), Request{UserPrompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestNewFromConfigUnknownProvider(t *testing.T) {
	_, err := NewFromConfig(context.Background(), Config{Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNewFromConfigRequiresKeys(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai", "gemini"} {
		t.Run(provider, func(t *testing.T) {
			_, err := NewFromConfig(context.Background(), Config{Provider: provider})
			assert.Error(t, err)
		})
	}
}

func TestCallerFunc(t *testing.T) {
	var c Caller = CallerFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{Text: req.UserPrompt + "!"}, nil
	})
	resp, err := c.CallModel(context.Background(), Request{UserPrompt: "hey"})
	require.NoError(t, err)
	assert.Equal(t, "hey!", resp.Text)
}
