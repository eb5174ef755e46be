package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aegisauth/aegis/internal/models"
	apperrors "github.com/aegisauth/aegis/pkg/errors"
)

// Export formats accepted by the audit exporter.
const (
	ExportFormatCSV  = "csv"
	ExportFormatJSON = "json"
)

const defaultExportThreshold = 5000

// ExportJob describes an export handed off to the background job system.
type ExportJob struct {
	TenantID string       `json:"tenant_id"`
	Format   string       `json:"format"`
	Filters  AuditFilters `json:"filters"`
}

// ExportEnqueuer hands export jobs to the external job system. Implementations
// live in the jobs package; services only see this abstraction.
type ExportEnqueuer interface {
	EnqueueAuditExport(ctx context.Context, job ExportJob) (string, error)
}

// ExportResult is either inline content or a reference to a background job.
type ExportResult struct {
	Inline      bool   `json:"inline"`
	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Content     []byte `json:"content,omitempty"`
	JobID       string `json:"job_id,omitempty"`
}

// AuditExporter generates audit exports, inline below a row-count threshold
// and via the job system above it so large exports never block the caller.
type AuditExporter struct {
	audit     *AuditService
	enqueuer  ExportEnqueuer
	threshold int64
	log       *zap.Logger
}

// NewAuditExporter constructs an exporter. enqueuer may be nil, in which case
// every export is generated inline regardless of size.
func NewAuditExporter(audit *AuditService, enqueuer ExportEnqueuer, threshold int64, log *zap.Logger) (*AuditExporter, error) {
	if audit == nil {
		return nil, errors.New("audit exporter: audit service is required")
	}
	if threshold <= 0 {
		threshold = defaultExportThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditExporter{audit: audit, enqueuer: enqueuer, threshold: threshold, log: log}, nil
}

// Export generates the export or hands it off to the job system when the
// matching row count exceeds the inline threshold.
func (x *AuditExporter) Export(ctx context.Context, tenantID, format string, filters AuditFilters) (*ExportResult, error) {
	ctx = ensureContext(ctx)

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, apperrors.NewBadRequest("tenant id is required")
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format != ExportFormatCSV && format != ExportFormatJSON {
		return nil, apperrors.NewBadRequest("format must be csv or json")
	}

	total, err := x.audit.CountLogs(ctx, tenantID, filters)
	if err != nil {
		return nil, err
	}

	if x.enqueuer != nil && total > x.threshold {
		jobID, err := x.enqueuer.EnqueueAuditExport(ctx, ExportJob{
			TenantID: tenantID,
			Format:   format,
			Filters:  filters,
		})
		if err != nil {
			return nil, fmt.Errorf("audit exporter: enqueue export: %w", err)
		}

		recordAudit(x.audit, ctx, x.log, AuditEntry{
			EventType: EventAuditExported,
			TenantID:  tenantID,
			Details:   map[string]any{"format": format, "rows": total, "job_id": jobID},
		})
		return &ExportResult{JobID: jobID}, nil
	}

	filename, contentType, content, err := x.Render(ctx, tenantID, format, filters)
	if err != nil {
		return nil, err
	}

	recordAudit(x.audit, ctx, x.log, AuditEntry{
		EventType: EventAuditExported,
		TenantID:  tenantID,
		Details:   map[string]any{"format": format, "rows": total, "inline": true},
	})

	return &ExportResult{
		Inline:      true,
		ContentType: contentType,
		Filename:    filename,
		Content:     content,
	}, nil
}

// Render produces the export content for the tenant. The background job
// worker calls this directly.
func (x *AuditExporter) Render(ctx context.Context, tenantID, format string, filters AuditFilters) (filename, contentType string, content []byte, err error) {
	ctx = ensureContext(ctx)

	var logs []models.AuditLog
	query := x.audit.db.WithContext(ctx).Model(&models.AuditLog{}).Where("tenant_id = ?", strings.TrimSpace(tenantID))
	query = applyAuditFilters(query, filters)
	if err = query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return "", "", nil, fmt.Errorf("audit exporter: load logs: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	switch format {
	case ExportFormatJSON:
		content, err = json.MarshalIndent(logs, "", "  ")
		if err != nil {
			return "", "", nil, fmt.Errorf("audit exporter: encode json: %w", err)
		}
		return fmt.Sprintf("audit-%s-%s.json", tenantID, stamp), "application/json", content, nil
	case ExportFormatCSV:
		content, err = renderCSV(logs)
		if err != nil {
			return "", "", nil, err
		}
		return fmt.Sprintf("audit-%s-%s.csv", tenantID, stamp), "text/csv", content, nil
	default:
		return "", "", nil, apperrors.NewBadRequest("format must be csv or json")
	}
}

func renderCSV(logs []models.AuditLog) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := []string{"id", "event_type", "tenant_id", "actor_type", "actor_id", "ip_address", "user_agent", "resource", "action", "effect", "details", "created_at"}
	if err := writer.Write(header); err != nil {
		return nil, fmt.Errorf("audit exporter: write csv header: %w", err)
	}

	for i := range logs {
		log := &logs[i]
		record := []string{
			log.ID,
			log.EventType,
			log.TenantID,
			log.ActorType,
			log.ActorID,
			log.IPAddress,
			log.UserAgent,
			log.Resource,
			log.Action,
			log.Effect,
			string(log.Details),
			log.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("audit exporter: write csv row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("audit exporter: flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
