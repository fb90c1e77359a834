package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
)

func TestCreateGrievance(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectExec("INSERT INTO grievances").WillReturnResult(sqlmock.NewResult(1, 1))

	g := &models.Grievance{
		SubmittedBy: "u1",
		Title:       "WiFi down in block C",
		Description: "No connectivity since Monday",
		Category:    models.CategoryFacility,
		Subcategory: "WiFi",
		Status:      models.StatusSubmitted,
	}
	err := repo.Create(context.Background(), g)
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.True(t, strings.HasPrefix(g.GrievanceID, "GRV-"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateGrievanceRetriesOnCodeCollision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectExec("INSERT INTO grievances").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("INSERT INTO grievances").WillReturnResult(sqlmock.NewResult(1, 1))

	g := &models.Grievance{
		SubmittedBy: "u1",
		Title:       "Marks not updated",
		Description: "Internal marks missing",
		Category:    models.CategoryExamination,
		Subcategory: "Marks Related",
		Status:      models.StatusSubmitted,
	}
	err := repo.Create(context.Background(), g)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateGrievanceDoubleCollision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectExec("INSERT INTO grievances").WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectExec("INSERT INTO grievances").WillReturnError(&pq.Error{Code: "23505"})

	g := &models.Grievance{
		SubmittedBy: "u1",
		Title:       "Title",
		Description: "Description",
		Category:    models.CategoryOther,
		Subcategory: "Other",
		Status:      models.StatusSubmitted,
	}
	err := repo.Create(context.Background(), g)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindGrievanceByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "grievance_id", "submitted_by", "title", "description", "category", "subcategory", "details", "status", "created_at", "updated_at", "resolved_at"}).
		AddRow("g1", "GRV-2026-A1B2C3", "u1", "WiFi down", "desc", "Facility", "WiFi", []byte(`{"location":"Block C"}`), "Submitted", now, now, nil)
	mock.ExpectQuery("SELECT .+ FROM grievances WHERE id = ").
		WithArgs("g1").
		WillReturnRows(rows)

	g, err := repo.FindByID(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "GRV-2026-A1B2C3", g.GrievanceID)
	assert.Equal(t, models.StatusSubmitted, g.Status)
	assert.Equal(t, "Block C", g.Details["location"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusStampsResolvedAt(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grievances SET status = $2, resolved_at = COALESCE(resolved_at, $3), updated_at = $4 WHERE id = $1")).
		WithArgs("g1", models.StatusResolved, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Now().UTC()
	err := repo.UpdateStatus(context.Background(), "g1", models.StatusResolved, &now)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	mock.ExpectExec("UPDATE grievances SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.StatusInProgress, nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListGrievancesScoped(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "grievance_id", "submitted_by", "title", "description", "category", "subcategory", "details", "status", "created_at", "updated_at", "resolved_at", "submitter_name", "submitter_id_number", "submitter_department"}).
		AddRow("g1", "GRV-2026-A1B2C3", "u1", "WiFi down", "desc", "Facility", "WiFi", []byte(`{}`), "Submitted", now, now, nil, "Asha Rao", "STU-104", "Computer Science")
	mock.ExpectQuery("SELECT g.id, .+ FROM grievances g JOIN users u ON u.id = g.submitted_by WHERE 1=1 AND g.submitted_by = ").
		WithArgs("u1").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery("SELECT COUNT").WithArgs("u1").WillReturnRows(countRows)

	items, total, err := repo.List(context.Background(), models.GrievanceFilter{SubmittedBy: "u1"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, items[0].Submitter)
	assert.Equal(t, "Asha Rao", items[0].Submitter.FullName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListHonorsExportRowBudget(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	listRows := sqlmock.NewRows([]string{"id", "grievance_id", "submitted_by", "title", "description", "category", "subcategory", "details", "status", "created_at", "updated_at", "resolved_at", "submitter_name", "submitter_id_number", "submitter_department"})
	mock.ExpectQuery("SELECT g.id, .+ LIMIT 5000 OFFSET 0").WillReturnRows(listRows)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, _, err := repo.List(context.Background(), models.GrievanceFilter{Page: 1, PageSize: 5000})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	rows := sqlmock.NewRows([]string{"status", "count"}).
		AddRow("Submitted", 4).
		AddRow("Resolved", 2)
	mock.ExpectQuery("SELECT status, COUNT").WillReturnRows(rows)

	counts, err := repo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Len(t, counts, 2)
	assert.Equal(t, models.StatusSubmitted, counts[0].Status)
	assert.Equal(t, 4, counts[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolutionStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGrievanceRepository(db)

	rows := sqlmock.NewRows([]string{"avg_hours", "resolved"}).AddRow(36.5, 3)
	mock.ExpectQuery("SELECT COALESCE").WillReturnRows(rows)

	avg, resolved, err := repo.ResolutionStats(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 36.5, avg, 0.001)
	assert.Equal(t, 3, resolved)
	assert.NoError(t, mock.ExpectationsWereMet())
}
