package service

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
)

type mockLister struct {
	rows       []models.GrievanceWithSubmitter
	lastFilter models.GrievanceFilter
}

// List pages the in-memory rows the way the real repository would, so a
// page-size cap anywhere in the path shrinks the register visibly.
func (m *mockLister) List(ctx context.Context, filter models.GrievanceFilter) ([]models.GrievanceWithSubmitter, int, error) {
	m.lastFilter = filter
	rows := m.rows
	if filter.PageSize > 0 && len(rows) > filter.PageSize {
		rows = rows[:filter.PageSize]
	}
	return rows, len(m.rows), nil
}

func sampleRegisterRows() []models.GrievanceWithSubmitter {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	return []models.GrievanceWithSubmitter{
		{
			Grievance: models.Grievance{
				GrievanceID: "GRV-2026-A1B2C3",
				Title:       "WiFi down in block C",
				Category:    models.CategoryFacility,
				Subcategory: "WiFi",
				Status:      models.StatusInProgress,
				CreatedAt:   now,
			},
			Submitter: &models.SubmitterInfo{FullName: "Asha Rao", UserIDNumber: "STU-104", Department: "Computer Science"},
		},
	}
}

func TestBuildRegisterCSV(t *testing.T) {
	lister := &mockLister{rows: sampleRegisterRows()}
	svc := NewExportService(lister, ExportConfig{Enabled: true, MaxRows: 100}, zap.NewNop(), nil, nil)

	result, err := svc.BuildRegister(context.Background(), adminClaims("admin"), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasSuffix(result.Filename, ".csv"))

	body := string(result.Payload)
	assert.Contains(t, body, "GRV-2026-A1B2C3")
	assert.Contains(t, body, "Asha Rao")
	assert.Contains(t, body, "In Progress")
	assert.Equal(t, 100, lister.lastFilter.PageSize)
}

func TestBuildRegisterIncludesAllRowsUpToMax(t *testing.T) {
	rows := make([]models.GrievanceWithSubmitter, 0, 150)
	for i := 0; i < 150; i++ {
		rows = append(rows, models.GrievanceWithSubmitter{
			Grievance: models.Grievance{
				GrievanceID: "GRV-2026-" + strings.ToUpper(strconv.FormatInt(int64(0x100000+i), 16)),
				Title:       "Row " + strconv.Itoa(i),
				Category:    models.CategoryOther,
				Subcategory: "Other",
				Status:      models.StatusSubmitted,
				CreatedAt:   time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
			},
		})
	}
	lister := &mockLister{rows: rows}
	svc := NewExportService(lister, ExportConfig{Enabled: true, MaxRows: 5000}, zap.NewNop(), nil, nil)

	result, err := svc.BuildRegister(context.Background(), adminClaims("admin"), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 5000, lister.lastFilter.PageSize)

	// header line plus one line per grievance
	lines := strings.Count(strings.TrimRight(string(result.Payload), "\n"), "\n") + 1
	assert.Equal(t, 151, lines)
}

func TestBuildRegisterPDF(t *testing.T) {
	lister := &mockLister{rows: sampleRegisterRows()}
	svc := NewExportService(lister, ExportConfig{Enabled: true, MaxRows: 100}, zap.NewNop(), nil, nil)

	result, err := svc.BuildRegister(context.Background(), adminClaims("admin"), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Payload), "%PDF"))
}

func TestBuildRegisterRequiresAdmin(t *testing.T) {
	svc := NewExportService(&mockLister{}, ExportConfig{Enabled: true}, zap.NewNop(), nil, nil)

	_, err := svc.BuildRegister(context.Background(), studentClaims("u1"), ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestBuildRegisterDisabled(t *testing.T) {
	svc := NewExportService(&mockLister{}, ExportConfig{Enabled: false}, zap.NewNop(), nil, nil)

	_, err := svc.BuildRegister(context.Background(), adminClaims("admin"), ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestParseExportFormat(t *testing.T) {
	format, err := ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatCSV, format)

	format, err = ParseExportFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, ExportFormatPDF, format)

	_, err = ParseExportFormat("xlsx")
	require.Error(t, err)
}
