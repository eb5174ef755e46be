package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aegisauth/aegis/internal/database/testutil"
	"github.com/aegisauth/aegis/internal/models"
)

type fakeEnqueuer struct {
	jobs []ExportJob
	err  error
}

func (f *fakeEnqueuer) EnqueueAuditExport(_ context.Context, job ExportJob) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobs = append(f.jobs, job)
	return "job-1", nil
}

func newExporterTest(t *testing.T, enqueuer ExportEnqueuer, threshold int64) (*AuditExporter, *AuditService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	exporter, err := NewAuditExporter(audit, enqueuer, threshold, zap.NewNop())
	require.NoError(t, err)
	return exporter, audit
}

func seedAuditLogs(t *testing.T, audit *AuditService, tenantID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, audit.Log(ctx, AuditEntry{EventType: EventRoleCreated, TenantID: tenantID, Resource: "document"}))
	}
}

func TestExportValidation(t *testing.T) {
	exporter, _ := newExporterTest(t, nil, 10)
	ctx := context.Background()

	_, err := exporter.Export(ctx, "", ExportFormatCSV, AuditFilters{})
	require.Error(t, err)

	_, err = exporter.Export(ctx, "org_1", "xml", AuditFilters{})
	require.Error(t, err)
}

func TestExportInlineCSV(t *testing.T) {
	exporter, audit := newExporterTest(t, nil, 10)
	seedAuditLogs(t, audit, "org_1", 3)

	result, err := exporter.Export(context.Background(), "org_1", ExportFormatCSV, AuditFilters{})
	require.NoError(t, err)
	require.True(t, result.Inline)
	require.Equal(t, "text/csv", result.ContentType)
	require.Contains(t, result.Filename, "org_1")

	records, err := csv.NewReader(bytes.NewReader(result.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus three rows")
	require.Equal(t, "event_type", records[0][1])
}

func TestExportInlineJSON(t *testing.T) {
	exporter, audit := newExporterTest(t, nil, 10)
	seedAuditLogs(t, audit, "org_1", 2)
	// Another tenant's entries never leak into the export.
	seedAuditLogs(t, audit, "org_2", 1)

	result, err := exporter.Export(context.Background(), "org_1", ExportFormatJSON, AuditFilters{})
	require.NoError(t, err)
	require.True(t, result.Inline)
	require.Equal(t, "application/json", result.ContentType)

	var logs []models.AuditLog
	require.NoError(t, json.Unmarshal(result.Content, &logs))
	require.Len(t, logs, 2)
	for _, log := range logs {
		require.Equal(t, "org_1", log.TenantID)
	}
}

func TestExportHandsOffAboveThreshold(t *testing.T) {
	enqueuer := &fakeEnqueuer{}
	exporter, audit := newExporterTest(t, enqueuer, 2)
	seedAuditLogs(t, audit, "org_1", 3)

	result, err := exporter.Export(context.Background(), "org_1", ExportFormatCSV, AuditFilters{})
	require.NoError(t, err)
	require.False(t, result.Inline)
	require.Equal(t, "job-1", result.JobID)
	require.Empty(t, result.Content)
	require.Len(t, enqueuer.jobs, 1)
	require.Equal(t, "org_1", enqueuer.jobs[0].TenantID)
	require.Equal(t, ExportFormatCSV, enqueuer.jobs[0].Format)
}

func TestExportInlineWithoutEnqueuerRegardlessOfSize(t *testing.T) {
	exporter, audit := newExporterTest(t, nil, 1)
	seedAuditLogs(t, audit, "org_1", 5)

	result, err := exporter.Export(context.Background(), "org_1", ExportFormatJSON, AuditFilters{})
	require.NoError(t, err)
	require.True(t, result.Inline, "without a job system the export always renders inline")
}

func TestExportRecordsAuditTrail(t *testing.T) {
	exporter, audit := newExporterTest(t, nil, 10)
	seedAuditLogs(t, audit, "org_1", 1)

	_, err := exporter.Export(context.Background(), "org_1", ExportFormatJSON, AuditFilters{})
	require.NoError(t, err)

	total, err := audit.CountLogs(context.Background(), "org_1", AuditFilters{EventType: EventAuditExported})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}
