package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nulzo/model-hub/internal/adapters/providers/utils"
	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/core/ports"
	"github.com/nulzo/model-hub/internal/registry"
)

func init() {
	registry.Register("google", NewAdapter)
}

type Adapter struct {
	config domain.ProviderConfig
	client *http.Client
}

func NewAdapter(config domain.ProviderConfig) (ports.ProviderAdapter, error) {
	if config.BaseURL == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com"
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Adapter{
		config: config,
		client: &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (a *Adapter) Provider() domain.Provider { return domain.ProviderGoogle }

type geminiModelList struct {
	Models []struct {
		Name             string `json:"name"`
		DisplayName      string `json:"displayName"`
		InputTokenLimit  int    `json:"inputTokenLimit"`
		OutputTokenLimit int    `json:"outputTokenLimit"`
	} `json:"models"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []map[string]interface{} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (a *Adapter) ListModels(ctx context.Context) ([]domain.ModelMetadata, error) {
	var payload geminiModelList
	url := fmt.Sprintf("%s/v1beta/models?key=%s", a.config.BaseURL, a.config.APIKey)
	if err := utils.SendRequest(ctx, a.client, domain.ProviderGoogle, http.MethodGet, url, nil, nil, &payload); err != nil {
		return nil, err
	}
	models := make([]domain.ModelMetadata, 0, len(payload.Models))
	for _, model := range payload.Models {
		id := strings.TrimPrefix(model.Name, "models/")
		models = append(models, domain.ModelMetadata{
			ID:          id,
			DisplayName: model.DisplayName,
			Provider:    domain.ProviderGoogle,
			Family:      deriveFamily(id),
			Capabilities: domain.ModelCapabilities{
				Text:             true,
				Vision:           true,
				ToolUse:          true,
				StructuredOutput: true,
				Streaming:        true,
			},
			ContextWindow: model.InputTokenLimit,
			MaxOutput:     model.OutputTokenLimit,
		})
	}
	return models, nil
}

func (a *Adapter) Generate(ctx context.Context, in domain.GenerateInput) (domain.GenerateOutput, error) {
	var resp geminiResponse
	url := a.modelURL(in.Model, "generateContent", "")
	if err := utils.SendRequest(ctx, a.client, domain.ProviderGoogle, http.MethodPost, url, nil, a.buildPayload(in), &resp); err != nil {
		return domain.GenerateOutput{}, err
	}
	return convertResponse(resp), nil
}

func (a *Adapter) StreamGenerate(ctx context.Context, in domain.GenerateInput) (<-chan domain.StreamChunk, error) {
	body, err := json.Marshal(a.buildPayload(in))
	if err != nil {
		return nil, err
	}
	url := a.modelURL(in.Model, "streamGenerateContent", "alt=sse")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	resp, err := utils.DoRequest(ctx, a.client, domain.ProviderGoogle, req)
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
		var usage *domain.Usage
		var finishReason string
		for event := range events {
			if event.Data == "" {
				continue
			}
			var payload geminiResponse
			if err := json.Unmarshal([]byte(event.Data), &payload); err != nil {
				continue
			}
			out := convertResponse(payload)
			if out.Usage != nil && out.Usage.TotalTokens > 0 {
				usage = out.Usage
			}
			if out.FinishReason != "" {
				finishReason = out.FinishReason
			}
			if out.Text != "" {
				if !emit(domain.StreamChunk{Type: domain.StreamChunkDelta, TextDelta: out.Text}) {
					return
				}
			}
			for i := range out.ToolCalls {
				call := out.ToolCalls[i]
				if !emit(domain.StreamChunk{Type: domain.StreamChunkToolCall, Call: &call, Delta: call.ArgumentsJSON}) {
					return
				}
			}
		}
		if finishReason == "" {
			finishReason = "stop"
		}
		emit(domain.StreamChunk{
			Type:         domain.StreamChunkMessageEnd,
			FinishReason: finishReason,
			Usage:        usage,
		})
	}()
	return ch, nil
}

// GenerateImage asks an image-capable model for inline image data.
func (a *Adapter) GenerateImage(ctx context.Context, in domain.ImageGenerateInput) (domain.ImageGenerateOutput, error) {
	var resp geminiResponse
	url := a.modelURL(in.Model, "generateContent", "")
	if err := utils.SendRequest(ctx, a.client, domain.ProviderGoogle, http.MethodPost, url, nil, buildImagePayload(in), &resp); err != nil {
		return domain.ImageGenerateOutput{}, err
	}
	mime, data := extractInlineImage(resp)
	if data == "" {
		return domain.ImageGenerateOutput{}, domain.NewError(domain.ErrUnknown, domain.ProviderGoogle, "image response missing inline data")
	}
	return domain.ImageGenerateOutput{Mime: mime, Data: data}, nil
}

func (a *Adapter) modelURL(model, action, query string) string {
	url := fmt.Sprintf("%s/v1beta/%s:%s?key=%s", a.config.BaseURL, ensureModelsPrefix(model), action, a.config.APIKey)
	if query != "" {
		url += "&" + query
	}
	return url
}

func (a *Adapter) buildPayload(in domain.GenerateInput) map[string]interface{} {
	system, contents := buildContents(in.Messages)
	config := map[string]interface{}{}
	if in.Temperature != nil {
		config["temperature"] = in.Temperature
	}
	if in.TopP != nil {
		config["topP"] = in.TopP
	}
	if in.MaxTokens != nil {
		config["maxOutputTokens"] = in.MaxTokens
	}
	if in.ResponseFormat != nil && in.ResponseFormat.Type == "json_schema" && in.ResponseFormat.JSONSchema != nil {
		config["responseMimeType"] = "application/json"
		config["responseSchema"] = in.ResponseFormat.JSONSchema.Schema
	}
	payload := map[string]interface{}{
		"contents":         contents,
		"generationConfig": config,
	}
	if system != nil {
		payload["systemInstruction"] = system
	}
	if tools := buildTools(in.Tools); tools != nil {
		payload["tools"] = tools
	}
	if toolConfig := buildToolConfig(in.ToolChoice); toolConfig != nil {
		payload["toolConfig"] = toolConfig
	}
	return payload
}

func buildImagePayload(in domain.ImageGenerateInput) map[string]interface{} {
	parts := []map[string]interface{}{
		{"text": in.Prompt},
	}
	for _, image := range in.InputImages {
		if image.Base64 != "" {
			mime := image.MediaType
			if strings.TrimSpace(mime) == "" {
				mime = "image/png"
			}
			parts = append(parts, map[string]interface{}{
				"inlineData": map[string]string{
					"mimeType": mime,
					"data":     image.Base64,
				},
			})
		} else if image.URL != "" {
			parts = append(parts, map[string]interface{}{
				"fileData": map[string]string{
					"fileUri": image.URL,
				},
			})
		}
	}
	return map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": parts},
		},
	}
}

func buildContents(messages []domain.Message) (map[string]interface{}, []map[string]interface{}) {
	var systemParts []string
	var contents []map[string]interface{}
	for _, message := range messages {
		if message.Role == "system" {
			systemParts = append(systemParts, joinText(message.Content))
			continue
		}
		if message.Role == "tool" {
			contents = append(contents, map[string]interface{}{
				"role": "user",
				"parts": []map[string]interface{}{
					{
						"functionResponse": map[string]interface{}{
							"name":     message.Name,
							"response": joinText(message.Content),
						},
					},
				},
			})
			continue
		}
		parts := make([]map[string]interface{}, 0, len(message.Content))
		for _, part := range message.Content {
			if part.Type == "text" {
				parts = append(parts, map[string]interface{}{"text": part.Text})
			} else if part.Image != nil {
				if part.Image.Base64 != "" {
					parts = append(parts, map[string]interface{}{
						"inlineData": map[string]string{
							"mimeType": part.Image.MediaType,
							"data":     part.Image.Base64,
						},
					})
				} else if part.Image.URL != "" {
					parts = append(parts, map[string]interface{}{
						"fileData": map[string]string{
							"fileUri": part.Image.URL,
						},
					})
				}
			}
		}
		role := "user"
		if message.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, map[string]interface{}{
			"role":  role,
			"parts": parts,
		})
	}
	var system map[string]interface{}
	if len(systemParts) > 0 {
		system = map[string]interface{}{
			"role": "system",
			"parts": []map[string]string{
				{"text": strings.Join(systemParts, "\n")},
			},
		}
	}
	return system, contents
}

func buildTools(tools []domain.ToolDefinition) interface{} {
	if len(tools) == 0 {
		return nil
	}
	funcs := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		funcs = append(funcs, map[string]interface{}{
			"name":        tool.Name,
			"description": tool.Description,
			"parameters":  tool.Parameters,
		})
	}
	return []map[string]interface{}{
		{"functionDeclarations": funcs},
	}
}

func buildToolConfig(choice *domain.ToolChoice) interface{} {
	if choice == nil {
		return nil
	}
	switch choice.Type {
	case "auto":
		return map[string]interface{}{
			"functionCallConfig": map[string]string{"mode": "AUTO"},
		}
	case "none":
		return map[string]interface{}{
			"functionCallConfig": map[string]string{"mode": "NONE"},
		}
	}
	return map[string]interface{}{
		"functionCallConfig": map[string]interface{}{
			"mode":                 "ANY",
			"allowedFunctionNames": []string{choice.Name},
		},
	}
}

func convertResponse(resp geminiResponse) domain.GenerateOutput {
	text := ""
	var calls []domain.ToolCall
	var finish string
	if len(resp.Candidates) > 0 {
		finish = resp.Candidates[0].FinishReason
		for _, part := range resp.Candidates[0].Content.Parts {
			if value, ok := part["text"].(string); ok {
				text += value
			}
			if fn, ok := part["functionCall"].(map[string]interface{}); ok {
				args, _ := json.Marshal(fn["args"])
				name, _ := fn["name"].(string)
				calls = append(calls, domain.ToolCall{
					ID:            name,
					Name:          name,
					ArgumentsJSON: string(args),
				})
			}
		}
	}
	return domain.GenerateOutput{
		Text:      text,
		ToolCalls: calls,
		Usage: &domain.Usage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  resp.UsageMetadata.TotalTokenCount,
		},
		FinishReason: finish,
	}
}

func extractInlineImage(resp geminiResponse) (string, string) {
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if inline, ok := part["inlineData"].(map[string]interface{}); ok {
				data, _ := inline["data"].(string)
				mime, _ := inline["mimeType"].(string)
				if data != "" {
					if mime == "" {
						mime = "image/png"
					}
					return mime, data
				}
			}
		}
	}
	return "", ""
}

func ensureModelsPrefix(id string) string {
	if strings.HasPrefix(id, "models/") {
		return id
	}
	return "models/" + id
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

func deriveFamily(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) >= 2 {
		return strings.Join(parts[:2], "-")
	}
	return id
}
