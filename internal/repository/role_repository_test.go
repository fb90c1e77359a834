package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
)

func TestFindRoleByUserID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	rows := sqlmock.NewRows([]string{"user_id", "role", "created_at"}).
		AddRow("u1", "admin", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id, role, created_at FROM user_roles WHERE user_id = $1 LIMIT 1")).
		WithArgs("u1").
		WillReturnRows(rows)

	assignment, err := repo.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, assignment)
	assert.Equal(t, models.RoleAdmin, assignment.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindRoleMissingRowIsNotAnError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectQuery("SELECT user_id, role, created_at FROM user_roles").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "role", "created_at"}))

	assignment, err := repo.FindByUserID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, assignment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleAssignment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectExec("INSERT INTO user_roles").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.RoleAssignment{UserID: "u1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRoleAssignmentTwiceConflicts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoleRepository(db)

	mock.ExpectExec("INSERT INTO user_roles").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.RoleAssignment{UserID: "u1", Role: models.RoleFaculty})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
