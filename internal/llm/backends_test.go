package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend serves body for every request and records the last request body.
func fakeBackend(t *testing.T, body string) (*httptest.Server, *string) {
	t.Helper()
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		got = string(data)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestAnthropicCaller(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantText  string
		truncated bool
		wantErr   error
	}{
		{
			name: "joins text blocks",
			body: `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
				"content":[{"type":"text","text":"[{\"label\":"},{"type":"text","text":"\"Eggs\"}]"}],
				"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":5}}`,
			wantText: "[{\"label\":\n\"Eggs\"}]",
		},
		{
			name: "max tokens marks truncation",
			body: `{"id":"msg_2","type":"message","role":"assistant","model":"claude-test",
				"content":[{"type":"text","text":"[{\"label\""}],
				"stop_reason":"max_tokens","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":5}}`,
			wantText:  `[{"label"`,
			truncated: true,
		},
		{
			name: "no text",
			body: `{"id":"msg_3","type":"message","role":"assistant","model":"claude-test","content":[],
				"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":0}}`,
			wantErr: ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := fakeBackend(t, tt.body)
			caller, err := NewAnthropicCaller(Config{APIKey: "key", Model: "claude-test", BaseURL: srv.URL + "/"})
			require.NoError(t, err)

			resp, err := caller.CallModel(context.Background(), Request{SystemPrompt: "pantry system", UserPrompt: "eggs", MaxTokens: 32})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Equal(t, tt.truncated, resp.Truncated)
			assert.Contains(t, *got, "pantry system")
			assert.Contains(t, *got, `"max_tokens":32`)
		})
	}
}

func TestOpenAICaller(t *testing.T) {
	response := func(status, text string) string {
		return `{"id":"resp_1","object":"response","created_at":1,"status":"` + status + `","model":"gpt-test",
			"output":[{"type":"message","id":"msg_1","role":"assistant","status":"completed",
			"content":[{"type":"output_text","text":"` + text + `","annotations":[]}]}]}`
	}

	tests := []struct {
		name      string
		body      string
		wantText  string
		truncated bool
		wantErr   error
	}{
		{name: "completed", body: response("completed", "[]"), wantText: "[]"},
		{name: "incomplete marks truncation", body: response("incomplete", "[{"), wantText: "[{", truncated: true},
		{name: "blank output", body: response("completed", "  "), wantErr: ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := fakeBackend(t, tt.body)
			caller, err := NewOpenAICaller(Config{APIKey: "key", Model: "gpt-test", BaseURL: srv.URL + "/"})
			require.NoError(t, err)

			resp, err := caller.CallModel(context.Background(), Request{SystemPrompt: "pantry system", UserPrompt: "eggs"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Equal(t, tt.truncated, resp.Truncated)
			assert.Contains(t, *got, `"instructions":"pantry system"`)
		})
	}
}

func TestGeminiCaller(t *testing.T) {
	response := func(text, finish string) string {
		return `{"candidates":[{"content":{"role":"model","parts":[{"text":"` + text + `"}]},"finishReason":"` + finish + `"}]}`
	}

	tests := []struct {
		name      string
		body      string
		mode      ResponseMode
		wantText  string
		truncated bool
		wantErr   error
	}{
		{name: "json mode", body: response("[]", "STOP"), mode: ResponseModeJSON, wantText: "[]"},
		{name: "max tokens marks truncation", body: response("[{", "MAX_TOKENS"), wantText: "[{", truncated: true},
		{name: "no candidates", body: `{"candidates":[]}`, wantErr: ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := fakeBackend(t, tt.body)
			caller, err := NewGeminiCaller(context.Background(), Config{APIKey: "key", Model: "gemini-test", BaseURL: srv.URL + "/"})
			require.NoError(t, err)

			resp, err := caller.CallModel(context.Background(), Request{SystemPrompt: "pantry system", UserPrompt: "eggs", ResponseMode: tt.mode})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Equal(t, tt.truncated, resp.Truncated)
			if tt.mode == ResponseModeJSON {
				assert.Contains(t, *got, `"responseMimeType":"application/json"`)
			} else {
				assert.NotContains(t, *got, "responseMimeType")
			}
		})
	}
}

func TestOllamaCaller(t *testing.T) {
	response := func(content, reason string) string {
		return `{"model":"llama-test","message":{"role":"assistant","content":"` + content + `"},"done":true,"done_reason":"` + reason + `"}`
	}

	tests := []struct {
		name      string
		body      string
		mode      ResponseMode
		wantText  string
		truncated bool
		wantErr   error
	}{
		{name: "json mode", body: response("[]", "stop"), mode: ResponseModeJSON, wantText: "[]"},
		{name: "length marks truncation", body: response("[{", "length"), wantText: "[{", truncated: true},
		{name: "blank content", body: response(" ", "stop"), wantErr: ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got := fakeBackend(t, tt.body)
			caller, err := NewOllamaCaller(Config{Model: "llama-test", BaseURL: srv.URL})
			require.NoError(t, err)

			resp, err := caller.CallModel(context.Background(), Request{SystemPrompt: "pantry system", UserPrompt: "eggs", ResponseMode: tt.mode})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text)
			assert.Equal(t, tt.truncated, resp.Truncated)
			assert.Contains(t, *got, `"stream":false`)
			if tt.mode == ResponseModeJSON {
				assert.Contains(t, *got, `"format":"json"`)
			} else {
				assert.NotContains(t, *got, `"format"`)
			}
		})
	}
}
