package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/aegisauth/aegis/internal/services"
)

const (
	// QueueExports is the queue dedicated to audit export jobs.
	QueueExports = "exports"
	// TaskTypeAuditExport is the task type for asynchronous audit exports.
	TaskTypeAuditExport = "audit:export"
)

// NewAuditExportTask constructs an Asynq task from an export job descriptor.
func NewAuditExportTask(job services.ExportJob) (*asynq.Task, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditExport, data), nil
}

// ExportWorker renders queued audit exports to files on disk.
type ExportWorker struct {
	exporter *services.AuditExporter
	dir      string
	log      *zap.Logger
}

// NewExportWorker constructs an ExportWorker writing into dir.
func NewExportWorker(exporter *services.AuditExporter, dir string, log *zap.Logger) (*ExportWorker, error) {
	if exporter == nil {
		return nil, errors.New("export worker: exporter is required")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("export worker: output directory is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportWorker{exporter: exporter, dir: dir, log: log}, nil
}

// ProcessTask handles TaskTypeAuditExport tasks.
func (w *ExportWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job services.ExportJob
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		// A payload that never unmarshals will never succeed on retry.
		return fmt.Errorf("export worker: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	filename, _, content, err := w.exporter.Render(ctx, job.TenantID, job.Format, job.Filters)
	if err != nil {
		return fmt.Errorf("export worker: render export: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("export worker: create output dir: %w", err)
	}
	path := filepath.Join(w.dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("export worker: write export: %w", err)
	}

	w.log.Info("audit export written",
		zap.String("tenant_id", job.TenantID),
		zap.String("format", job.Format),
		zap.String("path", path))
	return nil
}
