// Package handler exposes the membership services over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"membership/internal/attendance"
	"membership/internal/auth"
	"membership/internal/insights"
	"membership/internal/member"
	"membership/internal/roster"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck = func(ctx context.Context) bool

// Deps are the services behind the routes.
type Deps struct {
	Members    *member.Service
	Roster     *roster.Service
	Attendance *attendance.Service
	Insights   *insights.Service
	Sessions   *auth.Sessions
	Health     map[string]HealthCheck
	Log        *zap.Logger
}

// Handler holds the services behind the HTTP routes.
type Handler struct {
	members    *member.Service
	roster     *roster.Service
	attendance *attendance.Service
	insights   *insights.Service
	sessions   *auth.Sessions
	health     map[string]HealthCheck
	log        *zap.Logger
}

// New builds a Handler. A nil logger is replaced with a no-op one.
func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		members:    d.Members,
		roster:     d.Roster,
		attendance: d.Attendance,
		insights:   d.Insights,
		sessions:   d.Sessions,
		health:     d.Health,
		log:        log.Named("http"),
	}
}

// Register mounts every route. loginLimit guards the unauthenticated session
// endpoints and may be nil.
func (h *Handler) Register(r *gin.Engine, loginLimit gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	session := r.Group("/v1/session")
	if loginLimit != nil {
		session.POST("", loginLimit, h.Login)
		session.POST("/refresh", loginLimit, h.RefreshSession)
	} else {
		session.POST("", h.Login)
		session.POST("/refresh", h.RefreshSession)
	}
	session.DELETE("", auth.OperatorAuth(h.sessions), h.Logout)

	v1 := r.Group("/v1", auth.OperatorAuth(h.sessions))
	{
		v1.GET("/members", h.ListMembers)
		v1.POST("/members", h.CreateMember)
		v1.GET("/members/export", h.ExportMembers)
		v1.POST("/members/import", h.ImportMembers)
		v1.GET("/members/:id", h.GetMember)
		v1.PUT("/members/:id", h.UpdateMember)
		v1.DELETE("/members/:id", h.DeleteMember)

		v1.GET("/attendance", h.ListAttendance)
		v1.GET("/attendance/dates", h.MarkedDates)
		v1.PUT("/attendance/:memberId/:date/status", h.SetStatus)
		v1.PUT("/attendance/:memberId/:date/communion", h.SetCommunion)

		v1.GET("/insights/dashboard", h.Dashboard)
		v1.GET("/insights/overview", h.Overview)
	}
}

// ---------- Health ----------

// Healthz reports 503 when any dependency check fails.
func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{}
	for name, check := range h.health {
		if check(c.Request.Context()) {
			checks[name] = "ok"
			continue
		}
		checks[name] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": checks})
}

// ---------- Errors ----------

// fail maps domain errors to a status. Anything unrecognised is logged and
// answered with the generic message.
func (h *Handler) fail(c *gin.Context, err error, generic string) {
	var verr *member.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, member.ErrNotFound), errors.Is(err, attendance.ErrUnknownMember):
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
	case errors.Is(err, member.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrInvalidDate), errors.Is(err, attendance.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error(generic, zap.String("route", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": generic})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
