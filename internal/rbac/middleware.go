package rbac

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"gymcrm-calls/internal/auth"
)

// HeaderDirectorOverride lets an admin act inside one director's tenant.
const HeaderDirectorOverride = "X-Director-Id"

// RequireDirector enforces the tenant invariant: every request below it runs
// with a director_id in context. Admins carry no director of their own and
// must name one with X-Director-Id; the header is ignored for everyone else.
func RequireDirector() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		role, _ := auth.Role(ctx)

		if IsAdmin(role) {
			if raw := strings.TrimSpace(c.GetHeader(HeaderDirectorOverride)); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || id <= 0 {
					c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid " + HeaderDirectorOverride})
					return
				}
				c.Request = c.Request.WithContext(auth.WithDirectorID(ctx, id))
				c.Set("director_id", id)
				c.Next()
				return
			}
		}

		if _, err := auth.DirectorID(ctx); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "director_id required"})
			return
		}
		c.Next()
	}
}

// RequireAnyRole allows access if the caller has any of the provided roles.
// admin bypasses all checks.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsAdmin(role) {
			c.Next()
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
