package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"membership/internal/attendance"
	"membership/internal/insights"
)

type statusRequest struct {
	Status attendance.Status `json:"status" binding:"required"`
}

type communionRequest struct {
	Communion *bool `json:"communion" binding:"required"`
}

type dayResponse struct {
	Date    string              `json:"date"`
	Records []attendance.Record `json:"records"`
	Totals  insights.Totals     `json:"totals"`
	Marked  bool                `json:"marked"`
}

// ---------- Attendance ----------

// ListAttendance returns one day with totals when ?date= is given, otherwise
// the records matching from/to/status.
func (h *Handler) ListAttendance(c *gin.Context) {
	ctx := c.Request.Context()
	if date := c.Query("date"); date != "" {
		recs, err := h.attendance.ForDate(ctx, date)
		if err != nil {
			h.fail(c, err, "failed to load attendance")
			return
		}
		if recs == nil {
			recs = []attendance.Record{}
		}
		c.JSON(http.StatusOK, dayResponse{
			Date:    date,
			Records: recs,
			Totals:  insights.AttendanceTotals(recs),
			Marked:  attendance.AnyPresent(recs),
		})
		return
	}

	recs, err := h.attendance.List(ctx, attendance.Filter{
		From:   c.Query("from"),
		To:     c.Query("to"),
		Status: attendance.Status(c.Query("status")),
	})
	if err != nil {
		h.fail(c, err, "failed to load attendance")
		return
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

// MarkedDates serves GET /v1/attendance/dates.
func (h *Handler) MarkedDates(c *gin.Context) {
	dates, err := h.attendance.MarkedDates(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to load attendance dates")
		return
	}
	if dates == nil {
		dates = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"dates": dates})
}

// SetStatus marks a member present or absent on a date.
func (h *Handler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	rec, err := h.attendance.SetStatus(c.Request.Context(), c.Param("memberId"), c.Param("date"), req.Status)
	if err != nil {
		h.fail(c, err, "error saving attendance")
		return
	}
	c.JSON(http.StatusOK, rec)
}

// SetCommunion toggles communion for a member on a date.
func (h *Handler) SetCommunion(c *gin.Context) {
	var req communionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "communion is required")
		return
	}
	rec, err := h.attendance.SetCommunion(c.Request.Context(), c.Param("memberId"), c.Param("date"), *req.Communion)
	if err != nil {
		h.fail(c, err, "error saving attendance")
		return
	}
	c.JSON(http.StatusOK, rec)
}
