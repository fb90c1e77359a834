package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campus-desk/grievance-api/internal/models"
	appErrors "github.com/campus-desk/grievance-api/pkg/errors"
)

const summaryCacheKey = "analytics:grievances:summary"

type analyticsRepository interface {
	CountByStatus(ctx context.Context) ([]models.GrievanceStatusCount, error)
	CountByCategory(ctx context.Context) ([]models.GrievanceCategoryCount, error)
	ResolutionStats(ctx context.Context) (float64, int, error)
}

// AnalyticsService aggregates grievance counts for the admin dashboard. The
// summary is cached; status changes and new submissions invalidate it.
type AnalyticsService struct {
	repo     analyticsRepository
	cache    *CacheService
	metrics  *MetricsService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAnalyticsService constructs an AnalyticsService instance.
func NewAnalyticsService(repo analyticsRepository, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, cacheTTL: cacheTTL, logger: logger}
}

// Summary returns grievance totals broken down by status and category plus
// resolution statistics. Every known status and category appears in the
// breakdowns even when its count is zero.
func (s *AnalyticsService) Summary(ctx context.Context) (*models.GrievanceSummary, error) {
	var cached models.GrievanceSummary
	if hit, err := s.cache.Get(ctx, summaryCacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	start := time.Now()
	statusCounts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to aggregate by status")
	}
	categoryCounts, err := s.repo.CountByCategory(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to aggregate by category")
	}
	avgHours, resolved, err := s.repo.ResolutionStats(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to compute resolution stats")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("analytics_summary", time.Since(start))
	}

	summary := buildSummary(statusCounts, categoryCounts, avgHours, resolved)

	if err := s.cache.Set(ctx, summaryCacheKey, summary, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache analytics summary", zap.Error(err))
	}
	return summary, nil
}

// InvalidateSummary drops the cached summary after a write.
func (s *AnalyticsService) InvalidateSummary(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, summaryCacheKey); err != nil {
		s.logger.Warn("failed to invalidate analytics summary", zap.Error(err))
	}
}

// SystemMetrics exposes the process counter snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

func buildSummary(statusCounts []models.GrievanceStatusCount, categoryCounts []models.GrievanceCategoryCount, avgHours float64, resolved int) *models.GrievanceSummary {
	byStatus := make(map[models.GrievanceStatus]int, len(statusCounts))
	total := 0
	for _, row := range statusCounts {
		byStatus[row.Status] = row.Count
		total += row.Count
	}
	statuses := make([]models.GrievanceStatusCount, 0, 4)
	for _, status := range models.Statuses() {
		statuses = append(statuses, models.GrievanceStatusCount{Status: status, Count: byStatus[status]})
	}

	byCategory := make(map[models.GrievanceCategory]int, len(categoryCounts))
	for _, row := range categoryCounts {
		byCategory[row.Category] = row.Count
	}
	categories := make([]models.GrievanceCategoryCount, 0, 6)
	for _, category := range models.Categories() {
		categories = append(categories, models.GrievanceCategoryCount{Category: category, Count: byCategory[category]})
	}

	var resolutionRate float64
	if total > 0 {
		resolutionRate = float64(resolved) / float64(total)
	}

	return &models.GrievanceSummary{
		Total:              total,
		ByStatus:           statuses,
		ByCategory:         categories,
		ResolutionRate:     resolutionRate,
		AvgResolutionHours: avgHours,
		ResolvedSampleSize: resolved,
		GeneratedAt:        time.Now().UTC(),
	}
}
