package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ticket-report-export/internal/models"
	appErrors "github.com/noah-isme/ticket-report-export/pkg/errors"
	"github.com/noah-isme/ticket-report-export/pkg/logger"
	"github.com/noah-isme/ticket-report-export/pkg/response"
)

// ContextUserKey is the gin context key storing the caller claims.
const ContextUserKey = "currentUser"

// EmailHeader identifies the caller when the email header is trusted.
const EmailHeader = "x-user-email"

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Identity resolves the caller from a bearer token. When trustEmailHeader is set
// and no Authorization header is present, the x-user-email header is accepted.
func Identity(validator tokenValidator, trustEmailHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			email := strings.TrimSpace(c.GetHeader(EmailHeader))
			if trustEmailHeader && email != "" {
				c.Set(ContextUserKey, &models.JWTClaims{Email: email})
				c.Set(logger.RequesterKey, email)
				c.Next()
				return
			}
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(logger.RequesterKey, claims.Email)
		c.Next()
	}
}

// ClaimsFromContext returns the claims set by Identity, or nil.
func ClaimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
