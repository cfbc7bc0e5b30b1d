package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/nulzo/model-hub/internal/core/domain"
)

// HTTPClient is the slice of *http.Client the helpers need; tests swap in
// a recording fake.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

const maxErrorBody = 4 << 10

// SendRequest marshals body, sends the request, and decodes a JSON response.
// Non-2xx responses come back as a classified *domain.Error carrying the
// upstream status and request id.
func SendRequest(ctx context.Context, client HTTPClient, provider domain.Provider, method, url string, headers map[string]string, body interface{}, response interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := DoRequest(ctx, client, provider, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if response != nil {
		if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// DoRequest executes a prepared request and converts failures into the
// shared error taxonomy. Callers that need the body (streams) own closing it.
func DoRequest(ctx context.Context, client HTTPClient, provider domain.Provider, req *http.Request) (*http.Response, error) {
	resp, err := client.Do(req)
	if err != nil {
		kind := domain.ErrUnknown
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = domain.ErrTimeout
		}
		return nil, &domain.Error{
			Kind:     kind,
			Message:  err.Error(),
			Provider: provider,
			Cause:    err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &domain.Error{
			Kind:           domain.ClassifyStatus(resp.StatusCode),
			Message:        upstreamMessage(body, resp.StatusCode),
			Provider:       provider,
			UpstreamStatus: resp.StatusCode,
			UpstreamCode:   upstreamCode(body),
			RequestID:      resp.Header.Get("x-request-id"),
		}
	}
	return resp, nil
}

// upstreamErrorBody matches the error envelope OpenAI-compatible APIs use;
// other vendors fall through to the raw body.
type upstreamErrorBody struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

func upstreamMessage(body []byte, status int) string {
	var parsed upstreamErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if len(body) > 0 {
		return string(body)
	}
	return fmt.Sprintf("upstream returned status %d", status)
}

func upstreamCode(body []byte) string {
	var parsed upstreamErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	switch code := parsed.Error.Code.(type) {
	case string:
		return code
	case float64:
		return fmt.Sprintf("%.0f", code)
	}
	return parsed.Error.Type
}
