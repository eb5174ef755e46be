package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/aegisauth/aegis/pkg/metrics"
)

// recordAudit logs the supplied entry best-effort: a failed audit write never
// fails the mutation it describes, but it is surfaced in logs and metrics.
func recordAudit(audit *AuditService, ctx context.Context, log *zap.Logger, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Log(ctx, entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		if log != nil {
			log.Error("audit write failed",
				zap.String("event_type", entry.EventType),
				zap.String("tenant_id", entry.TenantID),
				zap.Error(err))
		}
	}
}
