package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/services"
	"github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/response"
)

type ViolationHandler struct {
	svc      *services.ViolationService
	enforcer *authz.Enforcer
}

func NewViolationHandler(svc *services.ViolationService, enforcer *authz.Enforcer) (*ViolationHandler, error) {
	if svc == nil || enforcer == nil {
		return nil, errors.ErrInternalServer
	}
	return &ViolationHandler{svc: svc, enforcer: enforcer}, nil
}

type suspendPermissionRequest struct {
	Resource  string     `json:"resource" validate:"required,min=1,max=128"`
	Action    string     `json:"action" validate:"required,min=1,max=128"`
	Severity  string     `json:"severity" validate:"required,oneof=low medium high critical"`
	Reason    string     `json:"reason" validate:"required,min=1,max=512"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type restorePermissionRequest struct {
	Resource string `json:"resource" validate:"required,min=1,max=128"`
	Action   string `json:"action" validate:"required,min=1,max=128"`
}

type lockdownRequest struct {
	Severity string `json:"severity" validate:"required,oneof=low medium high critical"`
	Reason   string `json:"reason" validate:"required,min=1,max=512"`
}

// POST /api/tenants/:tenantId/violations/permissions
func (h *ViolationHandler) SuspendPermission(c *gin.Context) {
	var body suspendPermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	created, err := h.svc.SuspendPermission(requestContext(c), services.SuspendPermissionInput{
		TenantID:  c.Param("tenantId"),
		Resource:  body.Resource,
		Action:    body.Action,
		Severity:  body.Severity,
		Reason:    body.Reason,
		ExpiresAt: body.ExpiresAt,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"suspended": created})
}

// DELETE /api/tenants/:tenantId/violations/permissions
func (h *ViolationHandler) RestorePermission(c *gin.Context) {
	var body restorePermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	restored, err := h.svc.RestorePermission(requestContext(c), c.Param("tenantId"), body.Resource, body.Action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"restored": restored})
}

// POST /api/tenants/:tenantId/violations/lockdown
func (h *ViolationHandler) Lockdown(c *gin.Context) {
	var body lockdownRequest
	if !bindAndValidate(c, &body) {
		return
	}

	created, err := h.svc.SuspendOrganization(requestContext(c), c.Param("tenantId"), body.Severity, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"locked": created})
}

// DELETE /api/tenants/:tenantId/violations/lockdown
func (h *ViolationHandler) Unlock(c *gin.Context) {
	restored, err := h.svc.RestoreOrganization(requestContext(c), c.Param("tenantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"restored": restored})
}

// GET /api/tenants/:tenantId/violations/lockdown
func (h *ViolationHandler) LockdownStatus(c *gin.Context) {
	locked, err := h.enforcer.IsTenantLockedDown(requestContext(c), c.Param("tenantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"locked": locked})
}

// GET /api/tenants/:tenantId/violations
func (h *ViolationHandler) List(c *gin.Context) {
	rules, err := h.svc.ListViolations(requestContext(c), c.Param("tenantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rules)
}
