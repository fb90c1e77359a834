package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
)

// HTTP listing page bounds. The register export bypasses these and
// passes its own row budget straight to the repository.
const (
	defaultListPageSize = 20
	maxListPageSize     = 100
)

type grievanceRepository interface {
	Create(ctx context.Context, g *models.Grievance) error
	FindByID(ctx context.Context, id string) (*models.Grievance, error)
	UpdateStatus(ctx context.Context, id string, status models.GrievanceStatus, resolvedAt *time.Time) error
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.GrievanceWithSubmitter, int, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SubmitGrievanceRequest is the payload for creating a grievance.
type SubmitGrievanceRequest struct {
	Title       string                   `json:"title" validate:"required"`
	Description string                   `json:"description" validate:"required"`
	Category    models.GrievanceCategory `json:"category" validate:"required"`
	Subcategory string                   `json:"subcategory" validate:"required"`
	Details     models.GrievanceDetails  `json:"details"`
}

// ListGrievancesRequest carries the optional narrowing filters. The
// visibility scope is derived from the actor, never from this payload.
type ListGrievancesRequest struct {
	Category string
	Status   string
	Search   string
	Page     int
	PageSize int
}

// UpdateStatusRequest is the payload for a lifecycle transition.
type UpdateStatusRequest struct {
	Status models.GrievanceStatus `json:"status" validate:"required"`
}

// RequestMeta carries client metadata for audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// GrievanceService owns grievance submission, the status lifecycle and
// role-scoped visibility.
type GrievanceService struct {
	repo      grievanceRepository
	audit     auditWriter
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGrievanceService constructs a GrievanceService instance.
func NewGrievanceService(repo grievanceRepository, audit auditWriter, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *GrievanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GrievanceService{repo: repo, audit: audit, notifier: notifier, validator: validate, logger: logger}
}

// Submit validates a candidate grievance against the taxonomy and persists
// it with status Submitted. The details bag is passed through unvalidated.
func (s *GrievanceService) Submit(ctx context.Context, actor *models.JWTClaims, req SubmitGrievanceRequest, meta RequestMeta) (*models.Grievance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == "" {
		return nil, appErrors.Clone(appErrors.ErrRoleNotAssigned, "account has no role yet")
	}

	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMissingRequiredField.Code, appErrors.ErrMissingRequiredField.Status, "title, description, category and subcategory are required")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrInvalidCategory, "unknown category "+string(req.Category))
	}
	if !req.Category.Allows(req.Subcategory) {
		return nil, appErrors.Clone(appErrors.ErrInvalidSubcategory, req.Subcategory+" is not a subcategory of "+string(req.Category))
	}

	grievance := &models.Grievance{
		SubmittedBy: actor.UserID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Subcategory: req.Subcategory,
		Details:     req.Details,
		Status:      models.StatusSubmitted,
	}

	if err := s.repo.Create(ctx, grievance); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrConflict.Code {
			return nil, appErr
		}
		return nil, appErrors.Store(err, "failed to create grievance")
	}

	payload, _ := json.Marshal(map[string]interface{}{"grievance_id": grievance.GrievanceID, "category": grievance.Category, "subcategory": grievance.Subcategory})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionGrievanceSubmit,
		Resource:   "grievances",
		ResourceID: &grievance.ID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record grievance submit audit log", zap.Error(err))
	}

	return grievance, nil
}

// Get returns a single grievance. Non-admin actors only ever see their own
// records; anything else reads as not found.
func (s *GrievanceService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.Grievance, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == "" {
		return nil, appErrors.Clone(appErrors.ErrRoleNotAssigned, "account has no role yet")
	}

	grievance, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Store(err, "failed to load grievance")
	}

	if actor.Role != models.RoleAdmin && grievance.SubmittedBy != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
	}
	return grievance, nil
}

// List returns the grievances visible to the actor, newest first. Admins see
// everything with submitter attributes; everyone else sees only their own
// submissions. Narrowing filters never widen the scope.
func (s *GrievanceService) List(ctx context.Context, actor *models.JWTClaims, req ListGrievancesRequest) ([]models.GrievanceWithSubmitter, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	if actor.Role == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrRoleNotAssigned, "account has no role yet")
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultListPageSize
	}
	if pageSize > maxListPageSize {
		pageSize = maxListPageSize
	}

	filter := models.GrievanceFilter{
		Search:   req.Search,
		Page:     page,
		PageSize: pageSize,
	}
	if actor.Role != models.RoleAdmin {
		filter.SubmittedBy = actor.UserID
	}
	if req.Category != "" {
		category := models.GrievanceCategory(req.Category)
		if !category.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidCategory, "unknown category "+req.Category)
		}
		filter.Category = &category
	}
	if req.Status != "" {
		status := models.GrievanceStatus(req.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+req.Status)
		}
		filter.Status = &status
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Store(err, "failed to list grievances")
	}

	// Submitter attributes are an admin presentation concern.
	if actor.Role != models.RoleAdmin {
		for i := range items {
			items[i].Submitter = nil
		}
	}

	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
	return items, pagination, nil
}

// UpdateStatus advances a grievance through its lifecycle. Only admins may
// transition; the transition table is monotonic and Closed is terminal.
// Requesting the current status is an idempotent no-op.
func (s *GrievanceService) UpdateStatus(ctx context.Context, actor *models.JWTClaims, id string, req UpdateStatusRequest, meta RequestMeta) (*models.Grievance, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins may change grievance status")
	}
	if !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status "+string(req.Status))
	}

	grievance, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Store(err, "failed to load grievance")
	}

	if grievance.Status == req.Status {
		return grievance, nil
	}
	if !grievance.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, string(grievance.Status)+" cannot move to "+string(req.Status))
	}

	now := time.Now().UTC()
	var resolvedAt *time.Time
	if req.Status == models.StatusResolved || req.Status == models.StatusClosed {
		resolvedAt = &now
	}

	if err := s.repo.UpdateStatus(ctx, id, req.Status, resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Store(err, "failed to update grievance status")
	}

	previous := grievance.Status
	grievance.Status = req.Status
	grievance.UpdatedAt = now
	if resolvedAt != nil && grievance.ResolvedAt == nil {
		grievance.ResolvedAt = resolvedAt
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"status": previous})
	newPayload, _ := json.Marshal(map[string]interface{}{"status": grievance.Status})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionStatusChange,
		Resource:   "grievances",
		ResourceID: &grievance.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record status change audit log", zap.Error(err))
	}

	if s.notifier != nil {
		s.notifier.NotifyStatusChange(ctx, models.GrievanceStatusChange{
			GrievanceID: grievance.ID,
			DisplayCode: grievance.GrievanceID,
			From:        previous,
			To:          grievance.Status,
			ActorID:     actor.UserID,
			OccurredAt:  now,
		})
	}

	return grievance, nil
}
