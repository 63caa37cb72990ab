package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/audit"
)

func (h *Handler) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.Settings(c.Request.Context()))
}

func (h *Handler) putSettings(c *gin.Context) {
	var req attendance.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "thresholds must be HH:MM")
		return
	}
	if err := h.Settings.Set(c.Request.Context(), req); err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, user(c), audit.ActionSettingsChanged, fmt.Sprintf("Late check-in threshold set to %s, late check-out threshold set to %s.",
		req.LateCheckInThreshold, req.LateCheckOutThreshold))
	c.JSON(http.StatusOK, req)
}

func (h *Handler) auditLogs(c *gin.Context) {
	entries, err := h.Audit.List(c.Request.Context(), c.Query("q"), intQuery(c, "limit", 100))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": nonNil(entries)})
}

type userRequest struct {
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Role      attendance.Role `json:"role"`
	Grade     int             `json:"grade"`
	AvatarURL string          `json:"avatar_url"`
	Password  string          `json:"password"`
}

func (r userRequest) user(id string) attendance.User {
	return attendance.User{ID: id, Name: r.Name, Email: r.Email, Role: r.Role, Grade: r.Grade, AvatarURL: r.AvatarURL}
}

func (h *Handler) listUsers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"users": h.Users.List()})
}

func (h *Handler) getUser(c *gin.Context) {
	u, err := h.Users.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *Handler) createUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	u, err := h.Users.Create(req.user(""), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, user(c), audit.ActionUserEdited, fmt.Sprintf("Created user %s (%s) with role %s.", u.Name, u.Email, u.Role))
	c.JSON(http.StatusCreated, u)
}

func (h *Handler) updateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	u, err := h.Users.Update(req.user(c.Param("id")), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, user(c), audit.ActionUserEdited, fmt.Sprintf("Updated user %s (%s).", u.Name, u.Email))
	c.JSON(http.StatusOK, u)
}

func (h *Handler) deleteUser(c *gin.Context) {
	actor := user(c)
	id := c.Param("id")
	if id == actor.ID {
		badRequest(c, "you cannot delete your own account")
		return
	}
	target, err := h.Users.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.Users.Delete(id); err != nil {
		respondError(c, err)
		return
	}
	h.audit(c, actor, audit.ActionUserDeleted, fmt.Sprintf("Deleted user %s (%s).", target.Name, target.Email))
	c.Status(http.StatusNoContent)
}
