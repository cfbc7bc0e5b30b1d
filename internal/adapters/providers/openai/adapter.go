package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/model-hub/internal/adapters/providers/utils"
	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/registry"
)

func init() {
	registry.Register("openai", NewAdapter)
}

type Adapter struct {
	config   domain.ProviderConfig
	provider domain.Provider
	client   *http.Client
}

func NewAdapter(config domain.ProviderConfig) (ports.ProviderAdapter, error) {
	return New(config, domain.ProviderOpenAI), nil
}

// New builds an adapter speaking the OpenAI wire protocol under the given
// provider identity. The ollama and xai adapters reuse it against their own
// base URLs.
func New(config domain.ProviderConfig, provider domain.Provider) *Adapter {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.openai.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Adapter{
		config:   config,
		provider: provider,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *Adapter) Provider() domain.Provider { return a.provider }

func (a *Adapter) headers() map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + a.config.APIKey,
	}
	if org, ok := a.config.Config["organization"]; ok {
		h["OpenAI-Organization"] = org
	}
	return h
}

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (a *Adapter) ListModels(ctx context.Context) ([]domain.ModelMetadata, error) {
	var payload modelList
	url := a.config.BaseURL + "/v1/models"
	if err := utils.SendRequest(ctx, a.client, a.provider, http.MethodGet, url, a.headers(), nil, &payload); err != nil {
		return nil, err
	}
	models := make([]domain.ModelMetadata, 0, len(payload.Data))
	for _, model := range payload.Data {
		models = append(models, domain.ModelMetadata{
			ID:          model.ID,
			DisplayName: model.ID,
			Provider:    a.provider,
			Family:      deriveFamily(model.ID),
			Capabilities: domain.ModelCapabilities{
				Text:      true,
				ToolUse:   true,
				Streaming: true,
			},
		})
	}
	return models, nil
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   interface{} `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

type chatChunk struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Delta        struct {
			Content   interface{} `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

func (a *Adapter) Generate(ctx context.Context, in domain.GenerateInput) (domain.GenerateOutput, error) {
	var payload chatResponse
	url := a.config.BaseURL + "/v1/chat/completions"
	body := a.buildChatPayload(in, false)
	if err := utils.SendRequest(ctx, a.client, a.provider, http.MethodPost, url, a.headers(), body, &payload); err != nil {
		return domain.GenerateOutput{}, err
	}
	return convertChatResponse(payload), nil
}

func (a *Adapter) StreamGenerate(ctx context.Context, in domain.GenerateInput) (<-chan domain.StreamChunk, error) {
	body := a.buildChatPayload(in, true)
	req, err := a.jsonRequest(ctx, http.MethodPost, "/v1/chat/completions", body)
	if err != nil {
		return nil, err
	}
	resp, err := utils.DoRequest(ctx, a.client, a.provider, req)
	if err != nil {
		return nil, err
	}

	ch := make(chan domain.StreamChunk)
	go func() {
		defer close(ch)
		emit := func(chunk domain.StreamChunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}
		events := utils.StreamSSE(ctx, resp.Body)
		toolStates := map[int]*domain.ToolCall{}
		var finishReason string
		var usage *domain.Usage
		for event := range events {
			if event.Data == "" || event.Data == "[DONE]" {
				continue
			}
			var chunk chatChunk
			if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
				continue
			}
			if chunk.Usage != nil {
				usage = convertUsage(chunk.Usage)
			}
			for _, choice := range chunk.Choices {
				if choice.FinishReason != "" {
					finishReason = choice.FinishReason
				}
				for _, text := range extractTextParts(choice.Delta.Content) {
					if !emit(domain.StreamChunk{Type: domain.StreamChunkDelta, TextDelta: text}) {
						return
					}
				}
				for _, tool := range choice.Delta.ToolCalls {
					state := toolStates[tool.Index]
					if state == nil {
						state = &domain.ToolCall{ID: tool.ID, Name: tool.Function.Name}
						toolStates[tool.Index] = state
					}
					state.ArgumentsJSON += tool.Function.Arguments
					snapshot := *state
					if !emit(domain.StreamChunk{Type: domain.StreamChunkToolCall, Call: &snapshot, Delta: tool.Function.Arguments}) {
						return
					}
				}
			}
		}
		if finishReason != "" {
			emit(domain.StreamChunk{
				Type:         domain.StreamChunkMessageEnd,
				FinishReason: finishReason,
				Usage:        usage,
			})
		}
	}()
	return ch, nil
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe uploads audio to the transcription endpoint. Only inline
// base64 audio is accepted; URLs would require a download step this adapter
// does not take on.
func (a *Adapter) Transcribe(ctx context.Context, in domain.TranscribeInput) (domain.TranscribeOutput, error) {
	if strings.TrimSpace(in.Audio.Base64) == "" {
		return domain.TranscribeOutput{}, domain.ValidationError("transcription requires inline base64 audio")
	}
	audio, err := base64.StdEncoding.DecodeString(in.Audio.Base64)
	if err != nil {
		return domain.TranscribeOutput{}, domain.ValidationError("audio payload is not valid base64")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fileName := in.Audio.FileName
	if fileName == "" {
		fileName = "audio.wav"
	}
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return domain.TranscribeOutput{}, err
	}
	if _, err := part.Write(audio); err != nil {
		return domain.TranscribeOutput{}, err
	}
	_ = form.WriteField("model", in.Model)
	_ = form.WriteField("response_format", "verbose_json")
	if in.Language != "" {
		_ = form.WriteField("language", in.Language)
	}
	if in.Prompt != "" {
		_ = form.WriteField("prompt", in.Prompt)
	}
	if err := form.Close(); err != nil {
		return domain.TranscribeOutput{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return domain.TranscribeOutput{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	for k, v := range a.headers() {
		req.Header.Set(k, v)
	}

	resp, err := utils.DoRequest(ctx, a.client, a.provider, req)
	if err != nil {
		return domain.TranscribeOutput{}, err
	}
	defer resp.Body.Close()

	var payload transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.TranscribeOutput{}, fmt.Errorf("failed to decode transcription response: %w", err)
	}
	out := domain.TranscribeOutput{
		Text:     payload.Text,
		Language: payload.Language,
		Duration: payload.Duration,
	}
	for _, segment := range payload.Segments {
		out.Segments = append(out.Segments, domain.TranscriptSegment{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}
	return out, nil
}

func (a *Adapter) jsonRequest(ctx context.Context, method, path string, payload map[string]interface{}) (*http.Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, a.config.BaseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range a.headers() {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (a *Adapter) buildChatPayload(in domain.GenerateInput, stream bool) map[string]interface{} {
	payload := map[string]interface{}{
		"model":    in.Model,
		"messages": mapMessages(in.Messages),
		"stream":   stream,
	}
	if in.Temperature != nil {
		payload["temperature"] = in.Temperature
	}
	if in.TopP != nil {
		payload["top_p"] = in.TopP
	}
	if in.MaxTokens != nil {
		payload["max_tokens"] = in.MaxTokens
	}
	if tools := mapTools(in.Tools); tools != nil {
		payload["tools"] = tools
	}
	if choice := mapToolChoice(in.ToolChoice); choice != nil {
		payload["tool_choice"] = choice
	}
	if format := mapResponseFormat(in.ResponseFormat); format != nil {
		payload["response_format"] = format
	}
	if len(in.Metadata) > 0 {
		payload["metadata"] = in.Metadata
	}
	return payload
}

func convertChatResponse(payload chatResponse) domain.GenerateOutput {
	if len(payload.Choices) == 0 {
		return domain.GenerateOutput{Usage: convertUsage(payload.Usage)}
	}
	choice := payload.Choices[0]
	toolCalls := make([]domain.ToolCall, 0, len(choice.Message.ToolCalls))
	for _, call := range choice.Message.ToolCalls {
		toolCalls = append(toolCalls, domain.ToolCall{
			ID:            call.ID,
			Name:          call.Function.Name,
			ArgumentsJSON: call.Function.Arguments,
		})
	}
	return domain.GenerateOutput{
		Text:         strings.Join(extractTextParts(choice.Message.Content), ""),
		ToolCalls:    toolCalls,
		Usage:        convertUsage(payload.Usage),
		FinishReason: choice.FinishReason,
	}
}

func convertUsage(usage *chatUsage) *domain.Usage {
	if usage == nil {
		return nil
	}
	return &domain.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
		TotalTokens:  usage.TotalTokens,
	}
}

// extractTextParts handles both the string content and the parts-array
// content the wire protocol allows.
func extractTextParts(content interface{}) []string {
	switch val := content.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []interface{}:
		var parts []string
		for _, item := range val {
			if part, ok := item.(map[string]interface{}); ok {
				if text, ok := part["text"].(string); ok && text != "" {
					parts = append(parts, text)
				}
			}
		}
		return parts
	default:
		return nil
	}
}

func mapMessages(messages []domain.Message) []map[string]interface{} {
	result := make([]map[string]interface{}, 0, len(messages))
	for _, message := range messages {
		if message.Role == "tool" {
			result = append(result, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": message.ToolCallID,
				"content":      joinText(message.Content),
			})
			continue
		}
		parts := make([]interface{}, 0, len(message.Content))
		for _, part := range message.Content {
			if part.Type == "text" {
				parts = append(parts, map[string]string{
					"type": "text",
					"text": part.Text,
				})
			} else if part.Image != nil {
				image := map[string]string{}
				if part.Image.URL != "" {
					image["url"] = part.Image.URL
				}
				if part.Image.Base64 != "" {
					image["b64_json"] = part.Image.Base64
				}
				parts = append(parts, map[string]interface{}{
					"type":      "image_url",
					"image_url": image,
				})
			}
		}
		// A single text part collapses to plain string content.
		content := interface{}(parts)
		if len(parts) == 1 {
			if text, ok := parts[0].(map[string]string); ok && text["type"] == "text" {
				content = text["text"]
			}
		}
		result = append(result, map[string]interface{}{
			"role":    message.Role,
			"content": content,
		})
	}
	return result
}

func joinText(parts []domain.ContentPart) string {
	var buf strings.Builder
	for _, part := range parts {
		if part.Type == "text" {
			buf.WriteString(part.Text)
		}
	}
	return buf.String()
}

func mapTools(tools []domain.ToolDefinition) []map[string]interface{} {
	if len(tools) == 0 {
		return nil
	}
	result := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		result = append(result, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return result
}

func mapToolChoice(choice *domain.ToolChoice) interface{} {
	if choice == nil {
		return nil
	}
	if choice.Type == "auto" || choice.Type == "none" {
		return choice.Type
	}
	return map[string]interface{}{
		"type": "function",
		"function": map[string]string{
			"name": choice.Name,
		},
	}
}

func mapResponseFormat(format *domain.ResponseFormat) interface{} {
	if format == nil {
		return nil
	}
	if format.Type == "json_schema" && format.JSONSchema != nil {
		return map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   format.JSONSchema.Name,
				"strict": format.JSONSchema.Strict,
				"schema": format.JSONSchema.Schema,
			},
		}
	}
	return map[string]string{"type": format.Type}
}

func deriveFamily(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) >= 2 {
		return strings.Join(parts[:2], "-")
	}
	return id
}
