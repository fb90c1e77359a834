package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campus-desk/grievance-api/internal/models"
)

// Notifier receives grievance lifecycle events. Delivery is best effort and
// must never fail the transition that produced the event.
type Notifier interface {
	NotifyStatusChange(ctx context.Context, change models.GrievanceStatusChange)
}

// LogNotifier writes lifecycle events to the structured log. It stands in for
// an outbound channel (mail, webhooks) without changing the service wiring.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// NotifyStatusChange logs the transition.
func (n *LogNotifier) NotifyStatusChange(_ context.Context, change models.GrievanceStatusChange) {
	n.logger.Info("grievance status changed",
		zap.String("grievance_id", change.GrievanceID),
		zap.String("display_code", change.DisplayCode),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
		zap.String("actor_id", change.ActorID),
		zap.Time("occurred_at", change.OccurredAt),
	)
}

// MetricsNotifier counts transitions before forwarding to the next sink.
type MetricsNotifier struct {
	metrics *MetricsService
	next    Notifier
}

// NewMetricsNotifier constructs a MetricsNotifier.
func NewMetricsNotifier(metrics *MetricsService, next Notifier) *MetricsNotifier {
	return &MetricsNotifier{metrics: metrics, next: next}
}

// NotifyStatusChange records the transition counter and forwards the event.
func (n *MetricsNotifier) NotifyStatusChange(ctx context.Context, change models.GrievanceStatusChange) {
	if n.metrics != nil {
		n.metrics.RecordStatusTransition(string(change.From), string(change.To))
	}
	if n.next != nil {
		n.next.NotifyStatusChange(ctx, change)
	}
}
