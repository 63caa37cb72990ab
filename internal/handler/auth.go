package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/audit"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/auth"
)

type tokenResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    int64           `json:"expires_at"`
	User         attendance.User `json:"user"`
}

func (h *Handler) issue(c *gin.Context, u attendance.User) {
	tokens, err := auth.Issue(u, h.Tokens.Issuer, h.Tokens.SigningKey, h.Tokens.AccessTTL, h.Tokens.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    tokens.AccessExp.Unix(),
		User:         u,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	u, err := h.Users.Authenticate(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	h.audit(c, u, audit.ActionLogin, u.Name+" logged in.")
	h.issue(c, u)
}

// refresh trades a refresh token for a new pair. The user is reloaded so role
// and grade changes take effect.
func (h *Handler) refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_token is required")
		return
	}
	claims, err := auth.ParseRefresh(req.RefreshToken, h.Tokens.SigningKey, h.Tokens.Issuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	u, err := h.Users.Get(claims.Subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	h.issue(c, u)
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, user(c))
}

// websocket authenticates with ?token= since browsers cannot set headers on the
// upgrade request.
func (h *Handler) websocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token missing"})
		return
	}
	claims, err := auth.Parse(token, h.Tokens.SigningKey, h.Tokens.Issuer)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	if h.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed disabled"})
		return
	}
	h.Hub.Serve(c.Writer, c.Request, claims.User())
}
