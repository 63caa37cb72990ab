package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cofiemark/ChildPICKAPP-DASHBOARD/internal/attendance"
)

const userKey = "user"

// UserAuth enforces bearer JWT tokens signed with HS256 and stores the user on
// the context.
func UserAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userKey, claims.User())
		c.Next()
	}
}

// RequireRole lets only the listed roles through.
func RequireRole(roles ...attendance.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
	}
}

// CurrentUser returns the user set by UserAuth.
func CurrentUser(c *gin.Context) (attendance.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return attendance.User{}, false
	}
	user, ok := v.(attendance.User)
	return user, ok
}

// SetUser stores user on the context. Used by tests and the websocket handshake.
func SetUser(c *gin.Context, user attendance.User) {
	c.Set(userKey, user)
}
