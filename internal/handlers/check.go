package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/authz"
	"github.com/aegisauth/aegis/internal/middleware"
	"github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/response"
)

// CheckHandler exposes the decision engine to trusted service callers.
type CheckHandler struct {
	enforcer *authz.Enforcer
}

func NewCheckHandler(enforcer *authz.Enforcer) (*CheckHandler, error) {
	if enforcer == nil {
		return nil, errors.ErrInternalServer
	}
	return &CheckHandler{enforcer: enforcer}, nil
}

type checkRequest struct {
	UserID   string `json:"user_id" validate:"omitempty,min=1,max=128"`
	TenantID string `json:"tenant_id" validate:"required,min=1,max=128"`
	Resource string `json:"resource" validate:"required,min=1,max=128"`
	Action   string `json:"action" validate:"required,min=1,max=128"`
	OwnerID  string `json:"owner_id" validate:"omitempty,max=128"`
}

// POST /api/check
func (h *CheckHandler) Check(c *gin.Context) {
	var body checkRequest
	if !bindAndValidate(c, &body) {
		return
	}

	// Service callers may check on behalf of any subject; otherwise the
	// decision applies to the caller itself.
	userID := strings.TrimSpace(body.UserID)
	if userID == "" {
		caller, ok := middleware.UserID(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		userID = caller
	}

	allowed, err := h.enforcer.Authorize(requestContext(c), authz.Request{
		UserID:          userID,
		TenantID:        body.TenantID,
		Resource:        body.Resource,
		Action:          body.Action,
		ResourceOwnerID: body.OwnerID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowed": allowed})
}

// GET /api/tenants/:tenantId/permissions
func (h *CheckHandler) EffectivePermissions(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		caller, ok := middleware.UserID(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			return
		}
		userID = caller
	}

	perms, err := h.enforcer.EffectivePermissions(requestContext(c), userID, c.Param("tenantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, perms)
}
