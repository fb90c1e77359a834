package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-desk/grievance-api/internal/service"
	"github.com/campus-desk/grievance-api/pkg/response"
)

// AnalyticsHandler exposes admin analytics endpoints.
type AnalyticsHandler struct {
	service *service.AnalyticsService
}

// NewAnalyticsHandler creates a new handler.
func NewAnalyticsHandler(svc *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc}
}

// Summary godoc
// @Summary Grievance analytics summary
// @Description Totals by status and category plus resolution statistics. Admin only
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /analytics/summary [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, summary, nil)
}

// SystemMetrics godoc
// @Summary Process metrics snapshot
// @Description Lightweight counter snapshot for the admin dashboard. Admin only
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) SystemMetrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.SystemMetrics(), nil)
}
