package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/model-hub/internal/adapters/providers/anthropic"
	"github.com/nulzo/model-hub/internal/core/domain"
)

func testConfig(baseURL string) domain.ProviderConfig {
	return domain.ProviderConfig{
		ID:      "anthropic-test",
		Type:    "anthropic",
		APIKey:  "test-key",
		BaseURL: baseURL,
		Enabled: true,
	}
}

func TestGenerateSplitsSystemMessages(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"content": [{"type": "text", "text": "Hi!"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 3}
		}`))
	}))
	defer server.Close()

	adapter, err := anthropic.NewAdapter(testConfig(server.URL))
	require.NoError(t, err)

	out, err := adapter.Generate(context.Background(), domain.GenerateInput{
		Provider: domain.ProviderAnthropic,
		Model:    "claude-3-5-sonnet-latest",
		Messages: []domain.Message{
			{Role: "system", Content: []domain.ContentPart{{Type: "text", Text: "Be terse."}}},
			{Role: "user", Content: []domain.ContentPart{{Type: "text", Text: "Hello"}}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Be terse.", captured["system"])
	messages := captured["messages"].([]interface{})
	require.Len(t, messages, 1)

	assert.Equal(t, "Hi!", out.Text)
	assert.Equal(t, "end_turn", out.FinishReason)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 13, out.Usage.TotalTokens)
}

func TestStreamGenerateToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("event: content_block_start\ndata: {\"type\":\"content_block_start\",\"index\":0,\"content_block\":{\"type\":\"tool_use\",\"id\":\"toolu_1\",\"name\":\"get_weather\"}}\n\n"))
		w.Write([]byte("event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"index\":0,\"delta\":{\"type\":\"input_json_delta\",\"partial_json\":\"{\\\"city\\\":\\\"Oslo\\\"}\"}}\n\n"))
		w.Write([]byte("event: message_stop\ndata: {\"type\":\"message_stop\",\"message\":{\"stop_reason\":\"tool_use\"}}\n\n"))
	}))
	defer server.Close()

	adapter, err := anthropic.NewAdapter(testConfig(server.URL))
	require.NoError(t, err)

	ch, err := adapter.StreamGenerate(context.Background(), domain.GenerateInput{
		Provider: domain.ProviderAnthropic,
		Model:    "claude-3-5-sonnet-latest",
		Messages: []domain.Message{
			{Role: "user", Content: []domain.ContentPart{{Type: "text", Text: "weather in Oslo?"}}},
		},
	})
	require.NoError(t, err)

	var toolChunks []domain.StreamChunk
	var terminal domain.StreamChunk
	for chunk := range ch {
		if chunk.Type == domain.StreamChunkToolCall {
			toolChunks = append(toolChunks, chunk)
		}
		if chunk.Terminal() {
			terminal = chunk
		}
	}
	require.NotEmpty(t, toolChunks)
	last := toolChunks[len(toolChunks)-1]
	assert.Equal(t, "toolu_1", last.Call.ID)
	assert.Equal(t, "get_weather", last.Call.Name)
	assert.Equal(t, `{"city":"Oslo"}`, last.Call.ArgumentsJSON)
	var fragments strings.Builder
	for _, c := range toolChunks {
		fragments.WriteString(c.Delta)
	}
	assert.Equal(t, `{"city":"Oslo"}`, fragments.String())
	assert.Equal(t, domain.StreamChunkMessageEnd, terminal.Type)
	assert.Equal(t, "tool_use", terminal.FinishReason)
}

func TestGenerateClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	adapter, err := anthropic.NewAdapter(testConfig(server.URL))
	require.NoError(t, err)

	_, err = adapter.Generate(context.Background(), domain.GenerateInput{
		Provider: domain.ProviderAnthropic,
		Model:    "claude-3-5-sonnet-latest",
		Messages: []domain.Message{
			{Role: "user", Content: []domain.ContentPart{{Type: "text", Text: "Hi"}}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrProviderRateLimit, domain.KindOf(err))
}
