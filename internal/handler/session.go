package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"membership/internal/auth"
)

type loginRequest struct {
	AccessCode string `json:"accessCode" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// ---------- Session ----------

// Login exchanges the access code for a token pair.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "accessCode is required")
		return
	}
	pair, err := h.sessions.Login(c.Request.Context(), req.AccessCode)
	if errors.Is(err, auth.ErrInvalidAccessCode) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid access code"})
		return
	}
	if err != nil {
		h.fail(c, err, "failed to start session")
		return
	}
	c.JSON(http.StatusOK, pair)
}

// RefreshSession rotates a refresh token.
func (h *Handler) RefreshSession(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refreshToken is required")
		return
	}
	pair, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrRevoked) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	if err != nil {
		h.fail(c, err, "failed to refresh session")
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Logout revokes the caller's access token.
func (h *Handler) Logout(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	if err := h.sessions.Logout(c.Request.Context(), claims); err != nil {
		h.fail(c, err, "failed to end session")
		return
	}
	c.Status(http.StatusNoContent)
}
