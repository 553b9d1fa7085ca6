package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/coffeeshop/internal/auth"
	"github.com/MarcoPoloResearchLab/coffeeshop/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsContextKey = "coffeeshop_claims"

// requirePermission aborts the request unless the bearer token grants permission.
// Verified claims are stored on the context for downstream handlers.
func (h *httpHandler) requirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := h.authorizer.Authorize(c.Request.Context(), c.GetHeader("Authorization"), permission)
		if err != nil {
			logger := logging.FromContext(c, h.logger)
			authErr, ok := auth.AsError(err)
			if !ok {
				logger.Error("authorization unavailable", zap.String("permission", permission), zap.Error(err))
				respondError(c, http.StatusInternalServerError, messageInternal)
				return
			}

			fields := []zap.Field{
				zap.String("permission", permission),
				zap.String("code", authErr.Code),
				zap.Error(err),
			}
			if authErr.Code == auth.CodeTokenExpired {
				logger.Info("token validation failed", fields...)
			} else {
				logger.Warn("token validation failed", fields...)
			}
			respondAuthError(c, authErr)
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

func claimsFromContext(c *gin.Context) (auth.Claims, bool) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := value.(auth.Claims)
	return claims, ok
}
