// Package handler exposes the attendance dashboard over HTTP.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/audit"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/auth"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/cloudinary"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/live"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/settings"
)

// PhotoUploader stores student photos and returns their public URL.
type PhotoUploader interface {
	UploadDataURL(ctx context.Context, data, publicID string) (*cloudinary.UploadResult, error)
	UploadBytes(ctx context.Context, data []byte, filename, publicID string) (*cloudinary.UploadResult, error)
}

// TokenConfig signs and verifies bearer tokens.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators of the HTTP layer. Photos may be nil when image
// storage is not configured.
type Deps struct {
	Service  *attendance.Service
	Settings settings.Store
	Users    *auth.Directory
	Audit    audit.Store
	Auditor  attendance.Auditor
	Hub      *live.Hub
	Photos   PhotoUploader
	Tokens   TokenConfig
	Health   map[string]HealthCheck
}

// Handler serves the /v1 API.
type Handler struct {
	Deps
}

// New creates a handler.
func New(d Deps) *Handler {
	return &Handler{Deps: d}
}

// writeRoles may record attendance and manage students.
var writeRoles = []attendance.Role{attendance.RoleSuperAdmin, attendance.RoleAdmin}

// respondError maps domain errors to status codes; anything else is a 500.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": message(err)})
	case errors.Is(err, attendance.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": message(err)})
	case errors.Is(err, attendance.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": message(err)})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func message(err error) string {
	var domain *attendance.Error
	if errors.As(err, &domain) {
		return domain.Msg
	}
	return err.Error()
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// user returns the authenticated caller. UserAuth guarantees it is set on every
// /v1 route it guards.
func user(c *gin.Context) attendance.User {
	u, _ := auth.CurrentUser(c)
	return u
}

// dateRange reads ?start and ?end as school-local days, defaulting to today.
func (h *Handler) dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	today := attendance.Day(h.Service.Now())
	start, ok := h.parseDay(c, "start", today)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	end, ok := h.parseDay(c, "end", today)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	if end.Before(start) {
		badRequest(c, "end must not be before start")
		return time.Time{}, time.Time{}, false
	}
	return start, attendance.EndOfDay(end), true
}

func (h *Handler) parseDay(c *gin.Context, key string, fallback time.Time) (time.Time, bool) {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return fallback, true
	}
	t, err := time.ParseInLocation(time.DateOnly, v, h.Service.Location())
	if err != nil {
		badRequest(c, key+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return t, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func (h *Handler) audit(c *gin.Context, actor attendance.User, action, details string) {
	if h.Auditor != nil {
		h.Auditor.Record(c.Request.Context(), actor, action, details)
	}
}
