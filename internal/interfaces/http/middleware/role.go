package middleware

import (
	"net/http"

	"github.com/fieldops/backend/internal/infrastructure/auth"
	"github.com/fieldops/backend/internal/infrastructure/logger"
	"github.com/fieldops/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequireRole admits callers holding any of roles. It must run after
// JWTAuthMiddleware; a request without identity is a 401, a wrong role a 403.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Authentication required", c.GetString(RequestIDKey)))
			return
		}
		if !claims.HasRole(roles...) {
			logger.L(c.Request.Context()).Warn("role check failed",
				zap.String("role", string(claims.Role)),
				zap.String("path", c.FullPath()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Insufficient role for this operation", c.GetString(RequestIDKey)))
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequireRole(auth.RoleAdmin)
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin)
}
