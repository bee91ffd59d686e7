package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campusware/atp-api/internal/middleware"
	"github.com/campusware/atp-api/internal/models"
)

// claimsFromContext reads the JWT claims set by the auth middleware. A
// nil result means the request never passed authentication and handlers
// answer 401.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	if claims, ok := c.Get(middleware.ContextUserKey); ok {
		if claims, ok := claims.(*models.JWTClaims); ok {
			return claims
		}
	}
	return nil
}
