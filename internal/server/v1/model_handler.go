package v1

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/model-hub/internal/core/domain"
	"github.com/nulzo/model-hub/pkg/api"
)

// listOptions builds registry options from query parameters. "providers" is
// a comma-separated filter; "refresh=true" bypasses the cache.
func listOptions(c *gin.Context) *domain.ListOptions {
	opts := &domain.ListOptions{
		Refresh: c.Query("refresh") == "true",
	}
	if raw := c.Query("providers"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				opts.Providers = append(opts.Providers, domain.Provider(p))
			}
		}
	}
	return opts
}

func (h *Handler) ListModels(c *gin.Context) {
	models, err := h.hub.ListModels(c.Request.Context(), listOptions(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.ModelList{Object: "list", Data: models})
}

func (h *Handler) ListModelRecords(c *gin.Context) {
	records, err := h.hub.ListModelRecords(c.Request.Context(), listOptions(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, api.RecordList{Object: "list", Data: records})
}

func (h *Handler) Resolve(c *gin.Context) {
	var req api.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(api.ValidationProblem(parseBindError(err)))
		return
	}

	opts := &domain.ListOptions{Refresh: req.Refresh}
	for _, p := range req.Providers {
		opts.Providers = append(opts.Providers, domain.Provider(p))
	}

	resolved, err := h.hub.Resolve(c.Request.Context(), opts, domain.ResolutionRequest{
		Constraints:     req.Constraints,
		PreferredModels: req.PreferredModels,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resolved)
}
