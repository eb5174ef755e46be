package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/services"
	"github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/response"
)

type AuditHandler struct {
	svc      *services.AuditService
	exporter *services.AuditExporter
}

func NewAuditHandler(svc *services.AuditService, exporter *services.AuditExporter) (*AuditHandler, error) {
	if svc == nil || exporter == nil {
		return nil, errors.ErrInternalServer
	}
	return &AuditHandler{svc: svc, exporter: exporter}, nil
}

func auditFiltersFromQuery(c *gin.Context) services.AuditFilters {
	var filters services.AuditFilters
	filters.EventType = c.Query("event_type")
	filters.ActorID = c.Query("actor_id")
	filters.Resource = c.Query("resource")
	filters.IPAddress = c.Query("ip")

	if s := c.Query("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			filters.Since = &t
		}
	}
	if u := c.Query("until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			filters.Until = &t
		}
	}
	return filters
}

// GET /api/tenants/:tenantId/audit
func (h *AuditHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 50)

	logs, total, err := h.svc.QueryLogs(requestContext(c), c.Param("tenantId"), services.AuditListOptions{
		Page:     page,
		PageSize: per,
		Filters:  auditFiltersFromQuery(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{Page: page, PerPage: per, Total: int(total)})
}

// GET /api/tenants/:tenantId/audit/:id
func (h *AuditHandler) Get(c *gin.Context) {
	entry, err := h.svc.GetLogByID(requestContext(c), c.Param("tenantId"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, entry)
}

// GET /api/tenants/:tenantId/audit/export
func (h *AuditHandler) Export(c *gin.Context) {
	format := strings.TrimSpace(c.DefaultQuery("format", services.ExportFormatJSON))

	result, err := h.exporter.Export(requestContext(c), c.Param("tenantId"), format, auditFiltersFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	if !result.Inline {
		response.Success(c, http.StatusAccepted, gin.H{"job_id": result.JobID})
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
