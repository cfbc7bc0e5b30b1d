package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/model-hub/internal/adapters/providers/openai"
	"github.com/nulzo/model-hub/internal/core/domain"
)

func testConfig(baseURL string) domain.ProviderConfig {
	return domain.ProviderConfig{
		ID:      "openai-test",
		Type:    "openai",
		APIKey:  "test-key",
		BaseURL: baseURL,
		Enabled: true,
	}
}

func userMessage(text string) []domain.Message {
	return []domain.Message{
		{Role: "user", Content: []domain.ContentPart{{Type: "text", Text: text}}},
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"choices": [{
				"message": {"role": "assistant", "content": "Hello there!"},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 9, "completion_tokens": 12, "total_tokens": 21}
		}`))
	}))
	defer server.Close()

	adapter, err := openai.NewAdapter(testConfig(server.URL))
	require.NoError(t, err)

	out, err := adapter.Generate(context.Background(), domain.GenerateInput{
		Provider: domain.ProviderOpenAI,
		Model:    "gpt-4o",
		Messages: userMessage("Hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there!", out.Text)
	assert.Equal(t, "stop", out.FinishReason)
	require.NotNil(t, out.Usage)
	assert.Equal(t, 9, out.Usage.InputTokens)
	assert.Equal(t, 12, out.Usage.OutputTokens)
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"data": [{"id": "gpt-4o"}, {"id": "gpt-4o-mini"}]}`))
	}))
	defer server.Close()

	adapter, err := openai.NewAdapter(testConfig(server.URL))
	require.NoError(t, err)

	models, err := adapter.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-4o", models[0].ID)
	assert.Equal(t, domain.ProviderOpenAI, models[0].Provider)
	assert.Equal(t, "gpt-4o", models[0].Family)
	assert.True(t, models[0].Capabilities.Streaming)
}

func TestStreamGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}],\"usage\":{\"prompt_tokens\":5,\"completion_tokens\":2,\"total_tokens\":7}}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	adapter, err := openai.NewAdapter(testConfig(server.URL))
	require.NoError(t, err)

	ch, err := adapter.StreamGenerate(context.Background(), domain.GenerateInput{
		Provider: domain.ProviderOpenAI,
		Model:    "gpt-4o",
		Messages: userMessage("Hi"),
	})
	require.NoError(t, err)

	var chunks []domain.StreamChunk
	for chunk := range ch {
		chunks = append(chunks, chunk)
	}
	require.Len(t, chunks, 3)
	assert.Equal(t, "Hel", chunks[0].TextDelta)
	assert.Equal(t, "lo", chunks[1].TextDelta)
	assert.Equal(t, domain.StreamChunkMessageEnd, chunks[2].Type)
	assert.Equal(t, "stop", chunks[2].FinishReason)
	require.NotNil(t, chunks[2].Usage)
	assert.Equal(t, 7, chunks[2].Usage.TotalTokens)
}

func TestStreamGenerateToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"id\":\"call_1\",\"function\":{\"name\":\"get_weather\",\"arguments\":\"{\\\"city\\\":\"}}]}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"tool_calls\":[{\"index\":0,\"function\":{\"arguments\":\"\\\"Oslo\\\"}\"}}]}}]}\n\n"))
		w.Write([]byte("data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"tool_calls\"}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	adapter, err := openai.NewAdapter(testConfig(server.URL))
	require.NoError(t, err)

	ch, err := adapter.StreamGenerate(context.Background(), domain.GenerateInput{
		Provider: domain.ProviderOpenAI,
		Model:    "gpt-4o",
		Messages: userMessage("weather in Oslo?"),
	})
	require.NoError(t, err)

	var calls []domain.StreamChunk
	var terminal domain.StreamChunk
	for chunk := range ch {
		if chunk.Type == domain.StreamChunkToolCall {
			calls = append(calls, chunk)
		}
		if chunk.Terminal() {
			terminal = chunk
		}
	}
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].Call.ID)
	assert.Equal(t, "get_weather", calls[0].Call.Name)
	// Each chunk carries the raw fragment plus the accumulated snapshot.
	assert.Equal(t, `{"city":`, calls[0].Delta)
	assert.Equal(t, `{"city":`, calls[0].Call.ArgumentsJSON)
	assert.Equal(t, `"Oslo"}`, calls[1].Delta)
	assert.Equal(t, `{"city":"Oslo"}`, calls[1].Call.ArgumentsJSON)
	assert.Equal(t, "tool_calls", terminal.FinishReason)
}

func TestGenerateClassifiesUpstreamErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-request-id", "req-42")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	}))
	defer server.Close()

	adapter, err := openai.NewAdapter(testConfig(server.URL))
	require.NoError(t, err)

	_, err = adapter.Generate(context.Background(), domain.GenerateInput{
		Provider: domain.ProviderOpenAI,
		Model:    "gpt-4o",
		Messages: userMessage("Hi"),
	})
	require.Error(t, err)

	var hubErr *domain.Error
	require.ErrorAs(t, err, &hubErr)
	assert.Equal(t, domain.ErrProviderAuth, hubErr.Kind)
	assert.Equal(t, 401, hubErr.UpstreamStatus)
	assert.Equal(t, "invalid_api_key", hubErr.UpstreamCode)
	assert.Equal(t, "req-42", hubErr.RequestID)
	assert.Equal(t, "Incorrect API key provided", hubErr.Message)
}

func TestTranscribeRequiresInlineAudio(t *testing.T) {
	adapter := openai.New(testConfig("http://localhost:0"), domain.ProviderOpenAI)

	_, err := adapter.Transcribe(context.Background(), domain.TranscribeInput{
		Provider: domain.ProviderOpenAI,
		Model:    "whisper-1",
		Audio:    domain.AudioInput{URL: "https://example.com/audio.wav"},
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrValidation, domain.KindOf(err))
}
