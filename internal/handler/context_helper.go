package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campus-desk/grievance-api/internal/middleware"
	"github.com/campus-desk/grievance-api/internal/models"
	"github.com/campus-desk/grievance-api/internal/service"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func requestMeta(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}
