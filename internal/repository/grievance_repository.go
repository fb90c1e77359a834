package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
)

const grievanceColumns = `id, grievance_id, submitted_by, title, description, category, subcategory, details, status, created_at, updated_at, resolved_at`

// GrievanceRepository provides database access for grievance records.
type GrievanceRepository struct {
	db *sqlx.DB
}

// NewGrievanceRepository creates a new instance of GrievanceRepository.
func NewGrievanceRepository(db *sqlx.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// Create inserts a new grievance. The display code is unique; on a collision
// the insert is retried once with a regenerated code before surfacing
// Conflict.
func (r *GrievanceRepository) Create(ctx context.Context, g *models.Grievance) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	if g.GrievanceID == "" {
		g.GrievanceID = newDisplayCode(now)
	}

	const query = `INSERT INTO grievances (id, grievance_id, submitted_by, title, description, category, subcategory, details, status, created_at, updated_at) VALUES (:id, :grievance_id, :submitted_by, :title, :description, :category, :subcategory, :details, :status, :created_at, :updated_at)`

	_, err := r.db.NamedExecContext(ctx, query, g)
	if isUniqueViolation(err) {
		g.GrievanceID = newDisplayCode(now)
		_, err = r.db.NamedExecContext(ctx, query, g)
		if isUniqueViolation(err) {
			return appErrors.Clone(appErrors.ErrConflict, "grievance code collision")
		}
	}
	if err != nil {
		return fmt.Errorf("create grievance: %w", err)
	}
	return nil
}

// FindByID returns a grievance by internal identifier.
func (r *GrievanceRepository) FindByID(ctx context.Context, id string) (*models.Grievance, error) {
	query := fmt.Sprintf(`SELECT %s FROM grievances WHERE id = $1 LIMIT 1`, grievanceColumns)
	var g models.Grievance
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find grievance by id: %w", err)
	}
	return &g, nil
}

// UpdateStatus persists a status change leaving every other field untouched.
// resolvedAt is stamped when the grievance first reaches Resolved or Closed.
func (r *GrievanceRepository) UpdateStatus(ctx context.Context, id string, status models.GrievanceStatus, resolvedAt *time.Time) error {
	const query = `UPDATE grievances SET status = $2, resolved_at = COALESCE(resolved_at, $3), updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, resolvedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update grievance status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type grievanceRow struct {
	models.Grievance
	SubmitterName       sql.NullString `db:"submitter_name"`
	SubmitterIDNumber   sql.NullString `db:"submitter_id_number"`
	SubmitterDepartment sql.NullString `db:"submitter_department"`
}

// List returns grievances matching the filter ordered newest first, with the
// total count. Submitter display attributes are joined in; callers scope the
// filter before reaching this layer.
func (r *GrievanceRepository) List(ctx context.Context, filter models.GrievanceFilter) ([]models.GrievanceWithSubmitter, int, error) {
	baseQuery := `FROM grievances g JOIN users u ON u.id = g.submitted_by WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.SubmittedBy != "" {
		conditions = append(conditions, fmt.Sprintf("g.submitted_by = $%d", len(args)+1))
		args = append(args, filter.SubmittedBy)
	}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("g.category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("g.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(g.grievance_id) LIKE $%d OR LOWER(g.title) LIKE $%d OR LOWER(u.full_name) LIKE $%d)", idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	// callers own the upper bound: the HTTP listing caps the page size,
	// the register export passes its full row budget
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf(`SELECT g.id, g.grievance_id, g.submitted_by, g.title, g.description, g.category, g.subcategory, g.details, g.status, g.created_at, g.updated_at, g.resolved_at, u.full_name AS submitter_name, u.user_id_number AS submitter_id_number, u.department AS submitter_department %s ORDER BY g.created_at DESC LIMIT %d OFFSET %d`, baseQuery, pageSize, offset)

	var rows []grievanceRow
	if err := r.db.SelectContext(ctx, &rows, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list grievances: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grievances: %w", err)
	}

	results := make([]models.GrievanceWithSubmitter, 0, len(rows))
	for _, row := range rows {
		item := models.GrievanceWithSubmitter{Grievance: row.Grievance}
		if row.SubmitterName.Valid {
			item.Submitter = &models.SubmitterInfo{
				FullName:     row.SubmitterName.String,
				UserIDNumber: row.SubmitterIDNumber.String,
				Department:   row.SubmitterDepartment.String,
			}
		}
		results = append(results, item)
	}
	return results, total, nil
}

// CountByStatus aggregates grievances per status.
func (r *GrievanceRepository) CountByStatus(ctx context.Context) ([]models.GrievanceStatusCount, error) {
	const query = `SELECT status, COUNT(*) AS count FROM grievances GROUP BY status`
	var counts []models.GrievanceStatusCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count grievances by status: %w", err)
	}
	return counts, nil
}

// CountByCategory aggregates grievances per category.
func (r *GrievanceRepository) CountByCategory(ctx context.Context) ([]models.GrievanceCategoryCount, error) {
	const query = `SELECT category, COUNT(*) AS count FROM grievances GROUP BY category`
	var counts []models.GrievanceCategoryCount
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count grievances by category: %w", err)
	}
	return counts, nil
}

// ResolutionStats returns the average hours from submission to resolution
// and the number of resolved records the average is based on.
func (r *GrievanceRepository) ResolutionStats(ctx context.Context) (float64, int, error) {
	const query = `SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 3600), 0) AS avg_hours, COUNT(*) AS resolved FROM grievances WHERE resolved_at IS NOT NULL`
	var stats struct {
		AvgHours float64 `db:"avg_hours"`
		Resolved int     `db:"resolved"`
	}
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return 0, 0, fmt.Errorf("grievance resolution stats: %w", err)
	}
	return stats.AvgHours, stats.Resolved, nil
}

// newDisplayCode builds a human-readable grievance code. Uniqueness is
// enforced by the store's unique index, not here.
func newDisplayCode(now time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("GRV-%d-%d", now.Year(), now.UnixNano()%1000000)
	}
	return fmt.Sprintf("GRV-%d-%s", now.Year(), strings.ToUpper(hex.EncodeToString(buf)))
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
