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

// newFakeProvider serves /v1/chat/completions with the given handler body.
func newFakeProvider(t *testing.T, handle func(req map[string]any) map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(handle(req))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(message map[string]any) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": "stop"}},
		"usage":   map[string]any{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18},
	}
}

func TestNewService(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "missing model", cfg: &Config{Provider: "openai"}, wantErr: true},
		{name: "openai", cfg: &Config{Provider: "openai", Model: "gpt-3.5-turbo", APIKey: "k"}},
		{name: "deepseek defaults", cfg: &Config{Provider: "deepseek", Model: "deepseek-chat"}},
		{name: "generic provider", cfg: &Config{Provider: "custom", Model: "m", BaseURL: "http://localhost:9999/v1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestNewClientConfig_DefaultBaseURL(t *testing.T) {
	assert.Equal(t, "https://openrouter.ai/api/v1", NewClientConfig("openrouter", "k", "").BaseURL)
	assert.Equal(t, "http://proxy/v1", NewClientConfig("openrouter", "k", "http://proxy/v1").BaseURL)
	assert.Equal(t, "https://api.openai.com/v1", NewClientConfig("openai", "k", "").BaseURL)
}

func TestChat(t *testing.T) {
	srv := newFakeProvider(t, func(req map[string]any) map[string]any {
		assert.Equal(t, "gpt-3.5-turbo", req["model"])
		assert.Nil(t, req["tools"])
		return completion(map[string]any{"role": "assistant", "content": "Try Dune."})
	})

	svc, err := NewService(&Config{Provider: "openai", Model: "gpt-3.5-turbo", APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	content, stats, err := svc.Chat(context.Background(), []Message{SystemPrompt("be kind"), UserMessage("sci-fi?")})
	require.NoError(t, err)
	assert.Equal(t, "Try Dune.", content)
	assert.Equal(t, 18, stats.TotalTokens)
}

func TestChatWithTools(t *testing.T) {
	srv := newFakeProvider(t, func(req map[string]any) map[string]any {
		tools, ok := req["tools"].([]any)
		require.True(t, ok)
		require.Len(t, tools, 1)
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		assert.Equal(t, "get_summary_by_title", fn["name"])

		return completion(map[string]any{
			"role":    "assistant",
			"content": "",
			"tool_calls": []any{map[string]any{
				"id":       "call_1",
				"type":     "function",
				"function": map[string]any{"name": "get_summary_by_title", "arguments": `{"title":"Dune"}`},
			}},
		})
	})

	svc, err := NewService(&Config{Provider: "openai", Model: "gpt-3.5-turbo", APIKey: "k", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	schema := &JSONSchema{
		Type:       "object",
		Properties: map[string]*JSONSchema{"title": {Type: "string", Enum: []string{"Dune"}}},
		Required:   []string{"title"},
	}
	resp, _, err := svc.ChatWithTools(context.Background(), []Message{UserMessage("dune?")}, []ToolDescriptor{
		{Name: "get_summary_by_title", Description: "fetch", Parameters: schema.String()},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "get_summary_by_title", resp.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"title":"Dune"}`, resp.ToolCalls[0].Function.Arguments)
}

func TestChat_EmptyChoices(t *testing.T) {
	srv := newFakeProvider(t, func(map[string]any) map[string]any {
		return map[string]any{"id": "x", "choices": []any{}}
	})

	svc, err := NewService(&Config{Provider: "openai", Model: "m", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, _, err = svc.Chat(context.Background(), []Message{UserMessage("hi")})
	assert.ErrorContains(t, err, "empty response")
}

func TestJSONSchema_String(t *testing.T) {
	s := &JSONSchema{Type: "object", Properties: map[string]*JSONSchema{
		"title": {Type: "string", Enum: []string{"A", "B"}},
	}}
	assert.JSONEq(t,
		`{"type":"object","additionalProperties":false,"properties":{"title":{"type":"string","enum":["A","B"],"additionalProperties":false}}}`,
		s.String())
}
