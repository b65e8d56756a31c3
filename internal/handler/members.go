package handler

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"membership/internal/member"
	"membership/internal/roster"
)

const maxImportBytes = 5 << 20

type memberRequest struct {
	member.Fields
	Version int `json:"version"`
}

// ---------- Members ----------

// ListMembers serves GET /v1/members.
func (h *Handler) ListMembers(c *gin.Context) {
	ms, err := h.members.List(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to load members")
		return
	}
	if ms == nil {
		ms = []member.Member{}
	}
	c.JSON(http.StatusOK, ms)
}

// GetMember serves GET /v1/members/:id.
func (h *Handler) GetMember(c *gin.Context) {
	m, err := h.members.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to load member")
		return
	}
	c.JSON(http.StatusOK, m)
}

// CreateMember validates the body and inserts one member.
func (h *Handler) CreateMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid member payload")
		return
	}
	m, err := h.members.Create(c.Request.Context(), req.Fields)
	if err != nil {
		h.fail(c, err, "error saving member")
		return
	}
	c.JSON(http.StatusCreated, m)
}

// UpdateMember overwrites a member. A version in the body makes the update
// conditional.
func (h *Handler) UpdateMember(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid member payload")
		return
	}
	m, err := h.members.Update(c.Request.Context(), c.Param("id"), req.Fields, req.Version)
	if err != nil {
		h.fail(c, err, "error saving member")
		return
	}
	c.JSON(http.StatusOK, m)
}

// DeleteMember removes a member and their attendance.
func (h *Handler) DeleteMember(c *gin.Context) {
	if err := h.members.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err, "error deleting member")
		return
	}
	c.Status(http.StatusNoContent)
}

// ---------- CSV ----------

// ExportMembers streams members.csv as an attachment.
func (h *Handler) ExportMembers(c *gin.Context) {
	var buf bytes.Buffer
	n, err := h.roster.Export(c.Request.Context(), &buf)
	if err != nil {
		h.fail(c, err, "failed to export members")
		return
	}
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": roster.Filename}))
	c.Header("X-Member-Count", strconv.Itoa(n))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ImportMembers accepts a multipart "file" field or a raw CSV body.
// ?dryRun=true validates without inserting.
func (h *Handler) ImportMembers(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImportBytes)

	var src io.Reader = c.Request.Body
	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		fh, err := c.FormFile("file")
		if err != nil {
			badRequest(c, "file is required")
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "could not read uploaded file")
			return
		}
		defer f.Close()
		src = f
	}

	dryRun, _ := strconv.ParseBool(c.Query("dryRun"))
	res, err := h.roster.Import(c.Request.Context(), src, dryRun)
	switch {
	case err == nil:
		status := http.StatusCreated
		if dryRun {
			status = http.StatusOK
		}
		c.JSON(status, res)
	case errors.Is(err, roster.ErrRejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "import rejected", "result": res})
	case errors.Is(err, roster.ErrUnreadable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read CSV file", "detail": err.Error()})
	default:
		h.fail(c, err, "error importing members")
	}
}
