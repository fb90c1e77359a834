package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
)

// RoleRepository provides access to the one-to-one user role mapping.
// Roles are assigned once at sign-up; there is no update path.
type RoleRepository struct {
	db *sqlx.DB
}

// NewRoleRepository creates a new instance of RoleRepository.
func NewRoleRepository(db *sqlx.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// FindByUserID resolves the role for a user. A missing row returns (nil,
// nil): callers must treat the absence as "no role yet" and deny role-gated
// access rather than erroring.
func (r *RoleRepository) FindByUserID(ctx context.Context, userID string) (*models.RoleAssignment, error) {
	const query = `SELECT user_id, role, created_at FROM user_roles WHERE user_id = $1 LIMIT 1`
	var assignment models.RoleAssignment
	if err := r.db.GetContext(ctx, &assignment, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find role by user id: %w", err)
	}
	return &assignment, nil
}

// Create inserts the role row for a user. Insert-once: a second insert for
// the same user surfaces Conflict.
func (r *RoleRepository) Create(ctx context.Context, assignment *models.RoleAssignment) error {
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO user_roles (user_id, role, created_at) VALUES (:user_id, :role, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "role already assigned")
		}
		return fmt.Errorf("create role assignment: %w", err)
	}
	return nil
}
