package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nulzo/model-hub/internal/core/domain"
)

// Problem implements RFC 9457
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`

	Log error `json:"-"`
}

func (p *Problem) Error() string {
	return fmt.Sprintf("[%d] %s: %s", p.Status, p.Title, p.Detail)
}

func (p *Problem) MarshalJSON() ([]byte, error) {
	type Alias Problem

	data := make(map[string]interface{})

	for k, v := range p.Extensions {
		data[k] = v
	}

	stdJSON, _ := json.Marshal(Alias(*p))
	_ = json.Unmarshal(stdJSON, &data)

	return json.Marshal(data)
}

type ProblemOption func(*Problem)

// NewProblem creates a generic Problem
func NewProblem(status int, title, detail string, opts ...ProblemOption) *Problem {
	p := &Problem{
		Type:       "about:blank", // Default as per RFC
		Title:      title,
		Status:     status,
		Detail:     detail,
		Extensions: make(map[string]interface{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// WithExtension adds a custom key-value pair to the response
func WithExtension(key string, value interface{}) ProblemOption {
	return func(p *Problem) {
		p.Extensions[key] = value
	}
}

// WithLog attaches an internal error for server-side logging
func WithLog(err error) ProblemOption {
	return func(p *Problem) {
		p.Log = err
	}
}

// ValidationProblem renders request-shape failures with a field map.
func ValidationProblem(fields map[string]string) *Problem {
	return NewProblem(http.StatusBadRequest, "Validation Failed",
		"One or more fields are invalid.",
		WithExtension("errors", fields))
}

// InternalProblem is the catch-all 500 shape.
func InternalProblem(detail string, err error) *Problem {
	return NewProblem(http.StatusInternalServerError, "Internal Server Error", detail, WithLog(err))
}

// FromDomainError maps a classified core error onto its transport shape.
// Upstream identifiers ride along as extensions when present.
func FromDomainError(err *domain.Error) *Problem {
	p := NewProblem(err.HTTPStatus(), titleFor(err.Kind), err.Message)
	if err.Provider != "" {
		p.Extensions["provider"] = string(err.Provider)
	}
	if err.UpstreamStatus != 0 {
		p.Extensions["upstream_status"] = err.UpstreamStatus
	}
	if err.UpstreamCode != "" {
		p.Extensions["upstream_code"] = err.UpstreamCode
	}
	if err.RequestID != "" {
		p.Extensions["upstream_request_id"] = err.RequestID
	}
	return p
}

func titleFor(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrValidation:
		return "Validation Failed"
	case domain.ErrProviderAuth:
		return "Provider Authentication Failed"
	case domain.ErrProviderNotFound:
		return "Model Not Found"
	case domain.ErrProviderRateLimit:
		return "Provider Rate Limited"
	case domain.ErrUnsupported:
		return "Capability Not Supported"
	case domain.ErrTimeout:
		return "Upstream Timeout"
	case domain.ErrProviderUnavailable:
		return "Provider Unavailable"
	}
	return "Internal Server Error"
}
