package models

import "time"

// GrievanceStatusCount is one row of the by-status aggregate.
type GrievanceStatusCount struct {
	Status GrievanceStatus `db:"status" json:"status"`
	Count  int             `db:"count" json:"count"`
}

// GrievanceCategoryCount is one row of the by-category aggregate.
type GrievanceCategoryCount struct {
	Category GrievanceCategory `db:"category" json:"category"`
	Count    int               `db:"count" json:"count"`
}

// GrievanceSummary is the admin analytics payload.
type GrievanceSummary struct {
	Total              int                      `json:"total"`
	ByStatus           []GrievanceStatusCount   `json:"by_status"`
	ByCategory         []GrievanceCategoryCount `json:"by_category"`
	ResolutionRate     float64                  `json:"resolution_rate"`
	AvgResolutionHours float64                  `json:"avg_resolution_hours"`
	ResolvedSampleSize int                      `json:"resolved_sample_size"`
	GeneratedAt        time.Time                `json:"generated_at"`
}

// SystemMetrics is a lightweight snapshot of process-level counters exposed
// alongside the Prometheus endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"avg_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"avg_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
