package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	authdomain "github.com/batipilot/batipilot/internal/auth/domain"
	"github.com/batipilot/batipilot/internal/userctx"
)

// AuthRequired verifies the bearer token and injects the authenticated
// user into the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.tokens.Parse(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		userID, err := snowflake.ParseString(claims.Subject)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := userctx.WithUser(c.Request.Context(), userID, claims.Role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole gates a route to the given roles. Admins always pass.
func (s *Server) RequireRole(roles ...authdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := userctx.RoleFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if authdomain.Role(role) == authdomain.RoleAdmin {
			c.Next()
			return
		}
		for _, allowed := range roles {
			if authdomain.Role(role) == allowed {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}
