package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/campus-desk/grievance-api/internal/models"
	"github.com/campus-desk/grievance-api/internal/service"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
	"github.com/campus-desk/grievance-api/pkg/response"
)

// GrievanceHandler wires HTTP endpoints to the grievance services.
type GrievanceHandler struct {
	service   *service.GrievanceService
	exports   *service.ExportService
	analytics *service.AnalyticsService
	metrics   *service.MetricsService
}

// NewGrievanceHandler creates a new handler.
func NewGrievanceHandler(svc *service.GrievanceService, exports *service.ExportService, analytics *service.AnalyticsService, metrics *service.MetricsService) *GrievanceHandler {
	return &GrievanceHandler{service: svc, exports: exports, analytics: analytics, metrics: metrics}
}

// Submit godoc
// @Summary Submit a grievance
// @Description File a grievance validated against the category taxonomy
// @Tags Grievances
// @Accept json
// @Produce json
// @Param payload body service.SubmitGrievanceRequest true "Grievance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Submit(c *gin.Context) {
	var req service.SubmitGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grievance payload"))
		return
	}

	grievance, err := h.service.Submit(c.Request.Context(), claimsFromContext(c), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordGrievanceSubmitted(string(grievance.Category))
	}
	if h.analytics != nil {
		h.analytics.InvalidateSummary(c.Request.Context())
	}

	response.Created(c, grievance)
}

// List godoc
// @Summary List grievances
// @Description List grievances visible to the caller, newest first. Admins see every record with submitter attributes
// @Tags Grievances
// @Produce json
// @Param category query string false "Category filter"
// @Param status query string false "Status filter"
// @Param search query string false "Search over code, title and submitter name"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /grievances [get]
func (h *GrievanceHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	req := service.ListGrievancesRequest{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}

	items, pagination, err := h.service.List(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a grievance
// @Description Fetch a single grievance by identifier. Non-admins only see their own records
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	grievance, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, grievance, nil)
}

// UpdateStatus godoc
// @Summary Update grievance status
// @Description Advance a grievance through its lifecycle. Admin only
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body service.UpdateStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grievances/{id}/status [patch]
func (h *GrievanceHandler) UpdateStatus(c *gin.Context) {
	var req service.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	grievance, err := h.service.UpdateStatus(c.Request.Context(), claimsFromContext(c), c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.analytics != nil {
		h.analytics.InvalidateSummary(c.Request.Context())
	}

	response.JSON(c, http.StatusOK, grievance, nil)
}

// Taxonomy godoc
// @Summary List the grievance taxonomy
// @Description Returns every category with its allowed subcategories
// @Tags Grievances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grievances/taxonomy [get]
func (h *GrievanceHandler) Taxonomy(c *gin.Context) {
	type entry struct {
		Category      models.GrievanceCategory `json:"category"`
		Subcategories []string                 `json:"subcategories"`
	}
	entries := make([]entry, 0, len(models.Taxonomy))
	for _, category := range models.Categories() {
		entries = append(entries, entry{Category: category, Subcategories: models.Taxonomy[category]})
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Export godoc
// @Summary Export the grievance register
// @Description Download the full register as CSV or PDF. Admin only
// @Tags Grievances
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /grievances/export [get]
func (h *GrievanceHandler) Export(c *gin.Context) {
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.exports.BuildRegister(c.Request.Context(), claimsFromContext(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}
