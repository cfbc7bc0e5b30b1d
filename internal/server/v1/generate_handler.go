package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/internal/server/validator"
	"github.com/nulzo/model-hub/pkg/api"
)

func parseBindError(err error) map[string]string {
	return validator.ParseValidationError(err)
}

func (h *Handler) Generate(c *gin.Context) {
	var req api.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationProblem(parseBindError(err)))
		return
	}

	if req.Stream {
		h.handleStream(c, req.GenerateInput)
		return
	}

	start := time.Now()
	out, err := h.hub.Generate(c.Request.Context(), req.GenerateInput)
	if err != nil {
		h.record(req.Provider, req.Model, "generate", "", start, statusOf(err), false, nil, nil, "", err)
		_ = c.Error(err)
		return
	}

	h.record(req.Provider, req.Model, "generate", out.KeyFingerprint, start, http.StatusOK, false, out.Usage, out.Cost, out.FinishReason, nil)
	c.JSON(http.StatusOK, out)
}

func (h *Handler) handleStream(c *gin.Context, in domain.GenerateInput) {
	start := time.Now()
	stream, err := h.hub.StreamGenerate(c.Request.Context(), in)
	if err != nil {
		h.record(in.Provider, in.Model, "stream", "", start, statusOf(err), true, nil, nil, "", err)
		_ = c.Error(err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("Transfer-Encoding", "chunked")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	// Terminal chunk carries usage and cost; capture it for the request log.
	var last domain.StreamChunk

	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-stream
		if !ok {
			_, _ = io.WriteString(w, "data: [DONE]\n\n")
			return false
		}

		data, merr := json.Marshal(chunk)
		if merr != nil {
			return true
		}
		if _, werr := fmt.Fprintf(w, "data: %s\n\n", data); werr != nil {
			return false
		}

		if chunk.Terminal() {
			last = chunk
		}
		return true
	})

	status := http.StatusOK
	finish := last.FinishReason
	if last.Type == domain.StreamChunkError && last.Error != nil {
		finish = "error"
	}
	h.record(in.Provider, in.Model, "stream", last.KeyFingerprint, start, status, true, last.Usage, last.Cost, finish, nil)
}

func (h *Handler) GenerateImage(c *gin.Context) {
	var req api.ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationProblem(parseBindError(err)))
		return
	}

	start := time.Now()
	out, err := h.hub.GenerateImage(c.Request.Context(), req.ImageGenerateInput)
	if err != nil {
		h.record(req.Provider, req.Model, "image", "", start, statusOf(err), false, nil, nil, "", err)
		_ = c.Error(err)
		return
	}

	h.record(req.Provider, req.Model, "image", out.KeyFingerprint, start, http.StatusOK, false, nil, nil, "", nil)
	c.JSON(http.StatusOK, out)
}

func (h *Handler) GenerateMesh(c *gin.Context) {
	var req domain.MeshGenerateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationProblem(parseBindError(err)))
		return
	}

	start := time.Now()
	out, err := h.hub.GenerateMesh(c.Request.Context(), req)
	if err != nil {
		h.record(req.Provider, req.Model, "mesh", "", start, statusOf(err), false, nil, nil, "", err)
		_ = c.Error(err)
		return
	}

	h.record(req.Provider, req.Model, "mesh", out.KeyFingerprint, start, http.StatusOK, false, nil, nil, "", nil)
	c.JSON(http.StatusOK, out)
}

func (h *Handler) Transcribe(c *gin.Context) {
	var req api.TranscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationProblem(parseBindError(err)))
		return
	}

	start := time.Now()
	out, err := h.hub.Transcribe(c.Request.Context(), req.TranscribeInput)
	if err != nil {
		h.record(req.Provider, req.Model, "transcribe", "", start, statusOf(err), false, nil, nil, "", err)
		_ = c.Error(err)
		return
	}

	h.record(req.Provider, req.Model, "transcribe", out.KeyFingerprint, start, http.StatusOK, false, nil, nil, "", nil)
	c.JSON(http.StatusOK, out)
}

func statusOf(err error) int {
	var domErr *domain.Error
	if errors.As(err, &domErr) {
		return domErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
