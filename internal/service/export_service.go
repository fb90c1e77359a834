package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
	"github.com/campus-desk/grievance-api/pkg/export"
)

// ExportFormat identifies a supported register rendering.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type grievanceLister interface {
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.GrievanceWithSubmitter, int, error)
}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(table export.Table, title string) ([]byte, error)
}

// ExportConfig tunes register export behaviour.
type ExportConfig struct {
	Enabled bool
	MaxRows int
}

// ExportResult carries a rendered register ready to stream.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders the full grievance register for administrators.
type ExportService struct {
	grievances grievanceLister
	csv        csvRenderer
	pdf        pdfRenderer
	cfg        ExportConfig
	logger     *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(grievances grievanceLister, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{grievances: grievances, csv: csv, pdf: pdf, cfg: cfg, logger: logger}
}

// BuildRegister renders the register in the requested format. Admin only.
func (s *ExportService) BuildRegister(ctx context.Context, actor *models.JWTClaims, format ExportFormat) (*ExportResult, error) {
	if actor == nil || actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "only admins may export the register")
	}
	if !s.cfg.Enabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "exports are disabled")
	}

	rows, total, err := s.grievances.List(ctx, models.GrievanceFilter{Page: 1, PageSize: s.cfg.MaxRows})
	if err != nil {
		return nil, appErrors.Store(err, "failed to load grievances for export")
	}
	if total > s.cfg.MaxRows {
		s.logger.Warn("register export truncated", zap.Int("total", total), zap.Int("max_rows", s.cfg.MaxRows))
	}

	table := buildRegisterTable(rows)
	timestamp := time.Now().UTC().Format("20060102_150405")

	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv register")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("grievance_register_%s.csv", timestamp),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case ExportFormatPDF:
		payload, err := s.pdf.Render(table, "Grievance Register")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf register")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("grievance_register_%s.pdf", timestamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+string(format))
	}
}

func buildRegisterTable(rows []models.GrievanceWithSubmitter) export.Table {
	table := export.Table{
		Columns: []string{"Code", "Title", "Category", "Subcategory", "Status", "Submitted By", "ID Number", "Department", "Created At", "Resolved At"},
		Rows:    make([][]string, 0, len(rows)),
	}
	for _, row := range rows {
		submitterName, submitterID, submitterDept := "", "", ""
		if row.Submitter != nil {
			submitterName = row.Submitter.FullName
			submitterID = row.Submitter.UserIDNumber
			submitterDept = row.Submitter.Department
		}
		table.Rows = append(table.Rows, []string{
			row.GrievanceID,
			row.Title,
			string(row.Category),
			row.Subcategory,
			string(row.Status),
			submitterName,
			submitterID,
			submitterDept,
			row.CreatedAt.UTC().Format(time.RFC3339),
			formatExportTime(row.ResolvedAt),
		})
	}
	return table
}

// ParseExportFormat normalises a query parameter into a known format.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return ExportFormatCSV, nil
	case "pdf":
		return ExportFormatPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+raw)
	}
}

func formatExportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
