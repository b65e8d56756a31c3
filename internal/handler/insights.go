package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ---------- Insights ----------

// Dashboard serves GET /v1/insights/dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.insights.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, d)
}

// Overview serves GET /v1/insights/overview?days=&top=.
func (h *Handler) Overview(c *gin.Context) {
	days, ok := intQuery(c, "days")
	if !ok {
		badRequest(c, "days must be a non-negative integer")
		return
	}
	top, ok := intQuery(c, "top")
	if !ok {
		badRequest(c, "top must be a non-negative integer")
		return
	}
	o, err := h.insights.Overview(c.Request.Context(), days, top)
	if err != nil {
		h.fail(c, err, "failed to load overview")
		return
	}
	c.JSON(http.StatusOK, o)
}

// intQuery reads an optional non-negative integer; absent means 0.
func intQuery(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > 366 {
		return 0, false
	}
	return n, true
}
