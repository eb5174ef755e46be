package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aegisauth/aegis/internal/auditctx"
	"github.com/aegisauth/aegis/internal/models"
	apperrors "github.com/aegisauth/aegis/pkg/errors"
)

// ErrAuditLogNotFound indicates the requested audit entry does not exist in the tenant.
var ErrAuditLogNotFound = apperrors.New("AUDIT_LOG_NOT_FOUND", "Audit log entry not found", http.StatusNotFound)

// AuditEntry captures a single audit event to persist. Actor fields are taken
// from the context when present.
type AuditEntry struct {
	EventType string
	TenantID  string
	Resource  string
	Action    string
	Effect    string
	Details   map[string]any
}

// AuditFilters encapsulates optional filters when querying audit logs.
type AuditFilters struct {
	EventType string
	ActorID   string
	Resource  string
	IPAddress string
	Since     *time.Time
	Until     *time.Time
}

// AuditListOptions controls pagination and filtering for audit queries.
type AuditListOptions struct {
	Page     int
	PageSize int
	Filters  AuditFilters
}

// AuditService persists and retrieves the append-only audit trail.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Log stores an audit entry, marshalling details into JSON form.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	eventType := strings.TrimSpace(entry.EventType)
	if eventType == "" {
		return errors.New("audit service: event type is required")
	}
	if !KnownAuditEvent(eventType) {
		return fmt.Errorf("audit service: unknown event type %q", eventType)
	}
	tenantID := strings.TrimSpace(entry.TenantID)
	if tenantID == "" {
		return errors.New("audit service: tenant id is required")
	}

	log := models.AuditLog{
		EventType: eventType,
		TenantID:  tenantID,
		ActorType: models.ActorTypeSystem,
		Resource:  strings.TrimSpace(entry.Resource),
		Action:    strings.TrimSpace(entry.Action),
		Effect:    strings.TrimSpace(entry.Effect),
	}

	if actor, ok := auditctx.FromContext(ctx); ok {
		log.ActorType = actor.Type
		log.ActorID = actor.ID
		log.IPAddress = actor.IPAddress
		log.UserAgent = actor.UserAgent
	}

	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("audit service: marshal details: %w", err)
		}
		log.Details = datatypes.JSON(encoded)
	}

	if err := s.db.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("audit service: write entry: %w", err)
	}
	return nil
}

// QueryLogs returns paginated audit logs for a tenant ordered by creation
// time descending.
func (s *AuditService) QueryLogs(ctx context.Context, tenantID string, opts AuditListOptions) ([]models.AuditLog, int64, error) {
	ctx = ensureContext(ctx)

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, 0, apperrors.NewBadRequest("tenant id is required")
	}

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	var (
		results []models.AuditLog
		total   int64
	)

	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("tenant_id = ?", tenantID)
	query = applyAuditFilters(query, opts.Filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("audit service: list logs: %w", err)
	}

	return results, total, nil
}

// GetLogByID loads a single audit entry, scoped to the tenant so an entry id
// can never be read across tenant boundaries.
func (s *AuditService) GetLogByID(ctx context.Context, tenantID, id string) (*models.AuditLog, error) {
	ctx = ensureContext(ctx)

	var log models.AuditLog
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", strings.TrimSpace(tenantID), strings.TrimSpace(id)).
		First(&log).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAuditLogNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("audit service: get log: %w", err)
	}
	return &log, nil
}

// CountLogs returns the number of entries matching the filters.
func (s *AuditService) CountLogs(ctx context.Context, tenantID string, filters AuditFilters) (int64, error) {
	ctx = ensureContext(ctx)

	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return 0, apperrors.NewBadRequest("tenant id is required")
	}

	var total int64
	query := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("tenant_id = ?", tenantID)
	query = applyAuditFilters(query, filters)
	if err := query.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("audit service: count logs: %w", err)
	}
	return total, nil
}

// CleanupOlderThan removes audit logs older than the supplied retention window (in days).
func (s *AuditService) CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error) {
	ctx = ensureContext(ctx)

	if retentionDays <= 0 {
		return 0, errors.New("audit service: retentionDays must be positive")
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("audit service: cleanup logs: %w", result.Error)
	}

	return result.RowsAffected, nil
}

func applyAuditFilters(query *gorm.DB, filters AuditFilters) *gorm.DB {
	if filters.EventType != "" {
		query = query.Where("event_type = ?", filters.EventType)
	}
	if filters.ActorID != "" {
		query = query.Where("actor_id = ?", filters.ActorID)
	}
	if filters.Resource != "" {
		query = query.Where("resource = ?", filters.Resource)
	}
	if filters.IPAddress != "" {
		query = query.Where("ip_address = ?", filters.IPAddress)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", *filters.Since)
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", *filters.Until)
	}
	return query
}
