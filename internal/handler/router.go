package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/auth"
	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/httpmiddleware"
)

// RouterOptions configure the middleware stack.
type RouterOptions struct {
	AllowedOrigins  []string
	RateLimitPerMin int
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.CORS(opts.AllowedOrigins))
	r.Use(httpmiddleware.SecurityHeaders())

	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if opts.RateLimitPerMin > 0 {
		bucket := httpmiddleware.NewSimpleTokenBucket(opts.RateLimitPerMin, opts.RateLimitPerMin)
		limit = bucket.Middleware(func(c *gin.Context) string {
			if u, ok := auth.CurrentUser(c); ok {
				return "user:" + u.ID
			}
			return ""
		})
	}

	h.Register(r, limit)
	return r
}

// Register mounts the routes on r. limit runs after authentication so that
// callers are limited per user.
func (h *Handler) Register(r *gin.Engine, limit gin.HandlerFunc) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.healthz)

	r.POST("/v1/auth/login", limit, h.login)
	r.POST("/v1/auth/refresh", limit, h.refresh)
	r.GET("/v1/ws", h.websocket)

	v1 := r.Group("/v1", auth.UserAuth(h.Tokens.SigningKey, h.Tokens.Issuer), limit)
	v1.GET("/me", h.me)

	writers := auth.RequireRole(writeRoles...)
	admins := auth.RequireRole(attendance.RoleSuperAdmin, attendance.RoleAdmin)
	superAdmin := auth.RequireRole(attendance.RoleSuperAdmin)

	v1.POST("/attendance", writers, h.recordAttendance)
	v1.GET("/dashboard", h.dashboard)
	v1.GET("/dashboard/today/:status", h.todayByStatus)
	v1.GET("/dashboard/late-arrivals", h.lateArrivals)
	v1.GET("/records", h.records)
	v1.GET("/reports/absenteeism", h.absenteeism)
	v1.GET("/reports/perfect-attendance", h.perfectAttendance)
	v1.GET("/export/csv", h.exportCSV)
	v1.GET("/export/xlsx", h.exportXLSX)

	v1.GET("/students", h.listStudents)
	v1.POST("/students", writers, h.createStudent)
	v1.GET("/students/:id", h.getStudent)
	v1.PUT("/students/:id", writers, h.updateStudent)
	v1.DELETE("/students/:id", writers, h.deleteStudent)
	v1.GET("/students/:id/history", h.studentHistory)
	v1.POST("/students/:id/photo", writers, h.uploadPhoto)

	v1.GET("/settings", h.getSettings)
	v1.PUT("/settings", admins, h.putSettings)
	v1.GET("/audit-logs", admins, h.auditLogs)

	v1.GET("/users", superAdmin, h.listUsers)
	v1.POST("/users", superAdmin, h.createUser)
	v1.GET("/users/:id", superAdmin, h.getUser)
	v1.PUT("/users/:id", superAdmin, h.updateUser)
	v1.DELETE("/users/:id", superAdmin, h.deleteUser)
}

func (h *Handler) healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.Health {
		healthy := check(c.Request.Context())
		body[name] = healthy
		if !healthy {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}
