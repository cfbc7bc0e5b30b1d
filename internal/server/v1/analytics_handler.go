package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/model-hub/pkg/api"
)

func (h *Handler) DailyStats(c *gin.Context) {
	if h.repo == nil {
		_ = c.Error(api.NewProblem(http.StatusNotImplemented, "Analytics Disabled",
			"The server is running without a database."))
		return
	}

	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days < 1 {
		days = 7
	}

	stats, err := h.repo.Requests().GetDailyStats(c.Request.Context(), days)
	if err != nil {
		_ = c.Error(api.InternalProblem("Failed to load daily stats", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"object": "list", "data": stats})
}

func (h *Handler) RecentRequests(c *gin.Context) {
	if h.repo == nil {
		_ = c.Error(api.NewProblem(http.StatusNotImplemented, "Analytics Disabled",
			"The server is running without a database."))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 {
		limit = 50
	}

	logs, err := h.repo.Requests().GetRecent(c.Request.Context(), c.Query("provider"), limit)
	if err != nil {
		_ = c.Error(api.InternalProblem("Failed to load request logs", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"object": "list", "data": logs})
}
