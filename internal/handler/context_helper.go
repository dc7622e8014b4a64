package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/ticket-report-export/internal/middleware"
	"github.com/noah-isme/ticket-report-export/internal/models"
)

func callerFromContext(c *gin.Context) (models.Caller, bool) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil || claims.Email == "" {
		return models.Caller{}, false
	}
	return claims.Caller(), true
}
