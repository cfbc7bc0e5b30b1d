package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/model-hub/internal/adapters/providers/utils"
	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/registry"
)

const defaultVersion = "2023-06-01"

func init() {
	registry.Register("anthropic", NewAdapter)
}

type Adapter struct {
	config  domain.ProviderConfig
	client  *http.Client
	version string
}

func NewAdapter(config domain.ProviderConfig) (ports.ProviderAdapter, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.anthropic.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	version := defaultVersion
	if v, ok := config.Config["version"]; ok {
		version = v
	}
	return &Adapter{
		config:  config,
		client:  &http.Client{Timeout: 60 * time.Second},
		version: version,
	}, nil
}

func (a *Adapter) Provider() domain.Provider { return domain.ProviderAnthropic }

func (a *Adapter) headers() map[string]string {
	return map[string]string{
		"x-api-key":         a.config.APIKey,
		"anthropic-version": a.version,
	}
}

type modelList struct {
	Data []struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"data"`
}

func (a *Adapter) ListModels(ctx context.Context) ([]domain.ModelMetadata, error) {
	var payload modelList
	url := a.config.BaseURL + "/v1/models"
	if err := utils.SendRequest(ctx, a.client, domain.ProviderAnthropic, http.MethodGet, url, a.headers(), nil, &payload); err != nil {
		return nil, err
	}
	models := make([]domain.ModelMetadata, 0, len(payload.Data))
	for _, model := range payload.Data {
		display := model.DisplayName
		if display == "" {
			display = model.ID
		}
		models = append(models, domain.ModelMetadata{
			ID:          model.ID,
			DisplayName: display,
			Provider:    domain.ProviderAnthropic,
			Family:      deriveFamily(model.ID),
			Capabilities: domain.ModelCapabilities{
				Text:             true,
				Vision:           true,
				ToolUse:          true,
				StructuredOutput: true,
				Streaming:        true,
			},
		})
	}
	return models, nil
}

type contentBlock struct {
	Type  string                 `json:"type"`
	Text  string                 `json:"text,omitempty"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
}

type messageResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type streamEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock contentBlock `json:"content_block"`
	Delta        struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
	} `json:"delta"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Message struct {
		StopReason string `json:"stop_reason"`
	} `json:"message"`
}

func (a *Adapter) Generate(ctx context.Context, in domain.GenerateInput) (domain.GenerateOutput, error) {
	var payload messageResponse
	url := a.config.BaseURL + "/v1/messages"
	body := a.buildPayload(in, false)
	if err := utils.SendRequest(ctx, a.client, domain.ProviderAnthropic, http.MethodPost, url, a.headers(), body, &payload); err != nil {
		return domain.GenerateOutput{}, err
	}
	return convertResponse(payload), nil
}

func (a *Adapter) StreamGenerate(ctx context.Context, in domain.GenerateInput) (<-chan domain.StreamChunk, error) {
	body, err := json.Marshal(a.buildPayload(in, true))
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range a.headers() {
		req.Header.Set(k, v)
	}
	resp, err := utils.DoRequest(ctx, a.client, domain.ProviderAnthropic, req)
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
		var usage *domain.Usage
		var finishReason string
		for event := range events {
			if event.Data == "" {
				continue
			}
			var payload streamEvent
			if err := json.Unmarshal([]byte(event.Data), &payload); err != nil {
				continue
			}
			if payload.Usage.InputTokens != 0 || payload.Usage.OutputTokens != 0 {
				usage = &domain.Usage{
					InputTokens:  payload.Usage.InputTokens,
					OutputTokens: payload.Usage.OutputTokens,
					TotalTokens:  payload.Usage.InputTokens + payload.Usage.OutputTokens,
				}
			}
			switch payload.Type {
			case "content_block_start":
				if payload.ContentBlock.Type == "tool_use" {
					toolStates[payload.Index] = &domain.ToolCall{
						ID:   payload.ContentBlock.ID,
						Name: payload.ContentBlock.Name,
					}
				}
			case "content_block_delta":
				if payload.Delta.Type == "text_delta" && payload.Delta.Text != "" {
					if !emit(domain.StreamChunk{Type: domain.StreamChunkDelta, TextDelta: payload.Delta.Text}) {
						return
					}
				}
				if payload.Delta.Type == "input_json_delta" {
					if state := toolStates[payload.Index]; state != nil {
						state.ArgumentsJSON += payload.Delta.PartialJSON
						snapshot := *state
						if !emit(domain.StreamChunk{Type: domain.StreamChunkToolCall, Call: &snapshot, Delta: payload.Delta.PartialJSON}) {
							return
						}
					}
				}
			case "content_block_stop":
				if state, ok := toolStates[payload.Index]; ok {
					snapshot := *state
					if !emit(domain.StreamChunk{Type: domain.StreamChunkToolCall, Call: &snapshot}) {
						return
					}
				}
			case "message_stop":
				finishReason = payload.Message.StopReason
			}
		}
		emit(domain.StreamChunk{
			Type:         domain.StreamChunkMessageEnd,
			FinishReason: finishReason,
			Usage:        usage,
		})
	}()
	return ch, nil
}

func (a *Adapter) buildPayload(in domain.GenerateInput, stream bool) map[string]interface{} {
	system, messages := splitMessages(in.Messages)
	payload := map[string]interface{}{
		"model":      in.Model,
		"messages":   messages,
		"max_tokens": defaultMaxTokens(in.MaxTokens),
		"stream":     stream,
	}
	if system != "" {
		payload["system"] = system
	}
	if in.Temperature != nil {
		payload["temperature"] = in.Temperature
	}
	if in.TopP != nil {
		payload["top_p"] = in.TopP
	}
	if len(in.Metadata) > 0 {
		payload["metadata"] = in.Metadata
	}
	if tools := mapTools(in.Tools); tools != nil {
		payload["tools"] = tools
	}
	if choice := mapToolChoice(in.ToolChoice); choice != nil {
		payload["tool_choice"] = choice
	}
	if in.ResponseFormat != nil && in.ResponseFormat.Type == "json_schema" && in.ResponseFormat.JSONSchema != nil {
		payload["output_format"] = map[string]interface{}{
			"type":   "json_schema",
			"schema": in.ResponseFormat.JSONSchema.Schema,
		}
	}
	return payload
}

func convertResponse(resp messageResponse) domain.GenerateOutput {
	text := ""
	var calls []domain.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			calls = append(calls, domain.ToolCall{
				ID:            block.ID,
				Name:          block.Name,
				ArgumentsJSON: toJSONString(block.Input),
			})
		}
	}
	return domain.GenerateOutput{
		Text:      text,
		ToolCalls: calls,
		Usage: &domain.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: resp.StopReason,
	}
}

// splitMessages separates system text (joined) from the turn messages and
// rewrites tool results into the vendor's tool_result blocks.
func splitMessages(messages []domain.Message) (string, []map[string]interface{}) {
	var systemParts []string
	var result []map[string]interface{}
	for _, message := range messages {
		if message.Role == "system" {
			systemParts = append(systemParts, joinText(message.Content))
			continue
		}
		if message.Role == "tool" {
			result = append(result, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type":        "tool_result",
						"tool_use_id": message.ToolCallID,
						"content":     joinText(message.Content),
					},
				},
			})
			continue
		}
		parts := make([]map[string]interface{}, 0, len(message.Content))
		for _, part := range message.Content {
			if part.Type == "text" {
				parts = append(parts, map[string]interface{}{
					"type": "text",
					"text": part.Text,
				})
			} else if part.Image != nil {
				source := map[string]string{
					"type":       "base64",
					"media_type": part.Image.MediaType,
					"data":       part.Image.Base64,
				}
				if part.Image.URL != "" {
					source = map[string]string{
						"type": "url",
						"url":  part.Image.URL,
					}
				}
				parts = append(parts, map[string]interface{}{
					"type":   "image",
					"source": source,
				})
			}
		}
		result = append(result, map[string]interface{}{
			"role":    message.Role,
			"content": parts,
		})
	}
	return strings.Join(systemParts, "\n"), result
}

func mapTools(tools []domain.ToolDefinition) []map[string]interface{} {
	if len(tools) == 0 {
		return nil
	}
	list := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		list = append(list, map[string]interface{}{
			"name":         tool.Name,
			"description":  tool.Description,
			"input_schema": tool.Parameters,
		})
	}
	return list
}

func mapToolChoice(choice *domain.ToolChoice) interface{} {
	if choice == nil {
		return nil
	}
	if choice.Type == "auto" || choice.Type == "none" {
		return map[string]string{"type": choice.Type}
	}
	return map[string]string{
		"type": "tool",
		"name": choice.Name,
	}
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

func defaultMaxTokens(value *int) int {
	if value != nil {
		return *value
	}
	return 1024
}

func toJSONString(value interface{}) string {
	data, err := json.Marshal(value)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func deriveFamily(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) >= 2 {
		return strings.Join(parts[:2], "-")
	}
	return id
}
