package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Caregiver roles.
const (
	RoleCareAdmin = "CARE_ADMIN"
	RoleNurse     = "NURSE"
	RoleFamily    = "FAMILY"

	// DefaultRole is assumed when the client cannot choose one.
	DefaultRole = RoleNurse

	// HeaderRole selects the role when role switching is enabled.
	HeaderRole = "X-Role"

	ctxKeyRole = "role"
)

// ParseRole normalizes s to one of the known roles.
func ParseRole(s string) (string, bool) {
	switch r := strings.ToUpper(strings.TrimSpace(s)); r {
	case RoleCareAdmin, RoleNurse, RoleFamily:
		return r, true
	}
	return "", false
}

// Roles resolves the acting role of every request. With allowSwitch the
// client may pick one through the X-Role header or the ?role= query
// parameter; unknown values fall back to DefaultRole.
func Roles(allowSwitch bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := DefaultRole
		if allowSwitch {
			for _, v := range []string{c.GetHeader(HeaderRole), c.Query("role")} {
				if r, ok := ParseRole(v); ok {
					role = r
					break
				}
			}
		}
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

// RoleFrom returns the role stored by Roles, or DefaultRole.
func RoleFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyRole); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return DefaultRole
}

// RequireRole lets the request through only when the acting role is one of
// allowed; otherwise it answers 403.
func RequireRole(allowed ...string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := set[RoleFrom(c)]; ok {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "forbidden",
			"message":    "role " + RoleFrom(c) + " may not change records",
		})
	}
}
