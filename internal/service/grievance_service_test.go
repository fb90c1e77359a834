package service

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
)

type mockGrievanceRepo struct {
	grievances map[string]*models.Grievance
	listed     []models.GrievanceWithSubmitter
	lastFilter models.GrievanceFilter
	createErr  error
	updated    map[string]models.GrievanceStatus
}

func newMockGrievanceRepo() *mockGrievanceRepo {
	return &mockGrievanceRepo{grievances: make(map[string]*models.Grievance), updated: make(map[string]models.GrievanceStatus)}
}

func (m *mockGrievanceRepo) Create(ctx context.Context, g *models.Grievance) error {
	if m.createErr != nil {
		return m.createErr
	}
	if g.ID == "" {
		g.ID = "generated"
	}
	if g.GrievanceID == "" {
		g.GrievanceID = "GRV-2026-ABCDEF"
	}
	m.grievances[g.ID] = g
	return nil
}

func (m *mockGrievanceRepo) FindByID(ctx context.Context, id string) (*models.Grievance, error) {
	g, ok := m.grievances[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *g
	return &copied, nil
}

func (m *mockGrievanceRepo) UpdateStatus(ctx context.Context, id string, status models.GrievanceStatus, resolvedAt *time.Time) error {
	g, ok := m.grievances[id]
	if !ok {
		return sql.ErrNoRows
	}
	g.Status = status
	if resolvedAt != nil && g.ResolvedAt == nil {
		g.ResolvedAt = resolvedAt
	}
	m.updated[id] = status
	return nil
}

func (m *mockGrievanceRepo) List(ctx context.Context, filter models.GrievanceFilter) ([]models.GrievanceWithSubmitter, int, error) {
	m.lastFilter = filter
	return m.listed, len(m.listed), nil
}

type mockAudit struct {
	logs []*models.AuditLog
}

func (m *mockAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type recordingNotifier struct {
	events []models.GrievanceStatusChange
}

func (r *recordingNotifier) NotifyStatusChange(_ context.Context, change models.GrievanceStatusChange) {
	r.events = append(r.events, change)
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func adminClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleAdmin}
}

func newTestGrievanceService(repo *mockGrievanceRepo, audit *mockAudit, notifier Notifier) *GrievanceService {
	return NewGrievanceService(repo, audit, notifier, validator.New(), zap.NewNop())
}

func TestSubmitValidGrievance(t *testing.T) {
	repo := newMockGrievanceRepo()
	audit := &mockAudit{}
	svc := newTestGrievanceService(repo, audit, nil)

	g, err := svc.Submit(context.Background(), studentClaims("u1"), SubmitGrievanceRequest{
		Title:       "WiFi down in block C",
		Description: "No connectivity since Monday",
		Category:    models.CategoryFacility,
		Subcategory: "WiFi",
		Details:     models.GrievanceDetails{"location": "Block C"},
	}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSubmitted, g.Status)
	assert.Equal(t, "u1", g.SubmittedBy)
	assert.NotEmpty(t, g.GrievanceID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionGrievanceSubmit, audit.logs[0].Action)
}

func TestSubmitMissingFields(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), &mockAudit{}, nil)

	_, err := svc.Submit(context.Background(), studentClaims("u1"), SubmitGrievanceRequest{
		Title:    "Only a title",
		Category: models.CategoryFacility,
	}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingRequiredField.Code, appErrors.FromError(err).Code)
}

func TestSubmitUnknownCategory(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), &mockAudit{}, nil)

	_, err := svc.Submit(context.Background(), studentClaims("u1"), SubmitGrievanceRequest{
		Title:       "Title",
		Description: "Description",
		Category:    "Sports",
		Subcategory: "Football",
	}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCategory.Code, appErrors.FromError(err).Code)
}

func TestSubmitSubcategoryFromWrongCategory(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), &mockAudit{}, nil)

	// "WiFi" belongs to Facility, not Academic.
	_, err := svc.Submit(context.Background(), studentClaims("u1"), SubmitGrievanceRequest{
		Title:       "Title",
		Description: "Description",
		Category:    models.CategoryAcademic,
		Subcategory: "WiFi",
	}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidSubcategory.Code, appErrors.FromError(err).Code)
}

func TestSubmitWithoutRoleFailsClosed(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), &mockAudit{}, nil)

	_, err := svc.Submit(context.Background(), &models.JWTClaims{UserID: "u1"}, SubmitGrievanceRequest{
		Title:       "Title",
		Description: "Description",
		Category:    models.CategoryOther,
		Subcategory: "Other",
	}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoleNotAssigned.Code, appErrors.FromError(err).Code)
}

func TestSubmitStoreOutageSurfacesUnavailable(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.createErr = driver.ErrBadConn
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	_, err := svc.Submit(context.Background(), studentClaims("u1"), SubmitGrievanceRequest{
		Title:       "Title",
		Description: "Description",
		Category:    models.CategoryOther,
		Subcategory: "Other",
	}, RequestMeta{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrStoreUnavailable.Code, appErr.Code)
	assert.Equal(t, appErrors.ErrStoreUnavailable.Status, appErr.Status)
}

func TestGetOwnGrievance(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", SubmittedBy: "u1", Status: models.StatusSubmitted}
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	g, err := svc.Get(context.Background(), studentClaims("u1"), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
}

func TestGetForeignGrievanceReadsAsNotFound(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", SubmittedBy: "owner", Status: models.StatusSubmitted}
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	_, err := svc.Get(context.Background(), studentClaims("intruder"), "g1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	g, err := svc.Get(context.Background(), adminClaims("admin"), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", g.ID)
}

func TestListScopesNonAdminToOwnRecords(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.listed = []models.GrievanceWithSubmitter{
		{Grievance: models.Grievance{ID: "g1", SubmittedBy: "u1"}, Submitter: &models.SubmitterInfo{FullName: "Asha Rao"}},
	}
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	items, _, err := svc.List(context.Background(), studentClaims("u1"), ListGrievancesRequest{})
	require.NoError(t, err)
	assert.Equal(t, "u1", repo.lastFilter.SubmittedBy)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Submitter)
}

func TestListAdminIsUnscopedAndKeepsSubmitter(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.listed = []models.GrievanceWithSubmitter{
		{Grievance: models.Grievance{ID: "g1", SubmittedBy: "someone"}, Submitter: &models.SubmitterInfo{FullName: "Asha Rao", UserIDNumber: "STU-104", Department: "Computer Science"}},
	}
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	items, _, err := svc.List(context.Background(), adminClaims("admin"), ListGrievancesRequest{})
	require.NoError(t, err)
	assert.Empty(t, repo.lastFilter.SubmittedBy)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Submitter)
	assert.Equal(t, "STU-104", items[0].Submitter.UserIDNumber)
}

func TestListCapsPageSize(t *testing.T) {
	repo := newMockGrievanceRepo()
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	_, pagination, err := svc.List(context.Background(), adminClaims("admin"), ListGrievancesRequest{Page: 1, PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, maxListPageSize, repo.lastFilter.PageSize)
	assert.Equal(t, maxListPageSize, pagination.PageSize)

	_, pagination, err = svc.List(context.Background(), adminClaims("admin"), ListGrievancesRequest{})
	require.NoError(t, err)
	assert.Equal(t, defaultListPageSize, repo.lastFilter.PageSize)
	assert.Equal(t, defaultListPageSize, pagination.PageSize)
}

func TestListRejectsUnknownCategoryFilter(t *testing.T) {
	svc := newTestGrievanceService(newMockGrievanceRepo(), &mockAudit{}, nil)

	_, _, err := svc.List(context.Background(), adminClaims("admin"), ListGrievancesRequest{Category: "Sports"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCategory.Code, appErrors.FromError(err).Code)
}

func TestUpdateStatusForwardTransition(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", GrievanceID: "GRV-2026-A1B2C3", SubmittedBy: "u1", Status: models.StatusSubmitted}
	audit := &mockAudit{}
	notifier := &recordingNotifier{}
	svc := newTestGrievanceService(repo, audit, notifier)

	g, err := svc.UpdateStatus(context.Background(), adminClaims("admin"), "g1", UpdateStatusRequest{Status: models.StatusInProgress}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, g.Status)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.StatusSubmitted, notifier.events[0].From)
	assert.Equal(t, models.StatusInProgress, notifier.events[0].To)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionStatusChange, audit.logs[0].Action)
}

func TestUpdateStatusBackwardTransitionRejected(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", Status: models.StatusClosed}
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	_, err := svc.UpdateStatus(context.Background(), adminClaims("admin"), "g1", UpdateStatusRequest{Status: models.StatusInProgress}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.updated)
}

func TestUpdateStatusSameStatusIsNoOp(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", Status: models.StatusInProgress}
	notifier := &recordingNotifier{}
	svc := newTestGrievanceService(repo, &mockAudit{}, notifier)

	g, err := svc.UpdateStatus(context.Background(), adminClaims("admin"), "g1", UpdateStatusRequest{Status: models.StatusInProgress}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, g.Status)
	assert.Empty(t, repo.updated)
	assert.Empty(t, notifier.events)
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", SubmittedBy: "u1", Status: models.StatusSubmitted}
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	_, err := svc.UpdateStatus(context.Background(), studentClaims("u1"), "g1", UpdateStatusRequest{Status: models.StatusResolved}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestUpdateStatusStampsResolvedAtOnce(t *testing.T) {
	repo := newMockGrievanceRepo()
	repo.grievances["g1"] = &models.Grievance{ID: "g1", Status: models.StatusInProgress}
	svc := newTestGrievanceService(repo, &mockAudit{}, nil)

	g, err := svc.UpdateStatus(context.Background(), adminClaims("admin"), "g1", UpdateStatusRequest{Status: models.StatusResolved}, RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, g.ResolvedAt)
	first := *g.ResolvedAt

	g, err = svc.UpdateStatus(context.Background(), adminClaims("admin"), "g1", UpdateStatusRequest{Status: models.StatusClosed}, RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, g.ResolvedAt)
	assert.Equal(t, first, *g.ResolvedAt)
}
