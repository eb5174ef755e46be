package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aegisauth/aegis/internal/policy"
	"github.com/aegisauth/aegis/internal/services"
	"github.com/aegisauth/aegis/pkg/errors"
	"github.com/aegisauth/aegis/pkg/response"
)

type RoleHandler struct {
	svc *services.RoleService
}

func NewRoleHandler(svc *services.RoleService) (*RoleHandler, error) {
	if svc == nil {
		return nil, errors.ErrInternalServer
	}
	return &RoleHandler{svc: svc}, nil
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=128,rolename"`
	Description string `json:"description" validate:"omitempty,max=512"`
}

type updateRoleRequest struct {
	Name        string  `json:"name" validate:"omitempty,min=2,max=128,rolename"`
	Description *string `json:"description" validate:"omitempty,max=512"`
}

type policyRequest struct {
	Role      string `json:"role" validate:"required,min=1,max=128"`
	Resource  string `json:"resource" validate:"required,min=1,max=128"`
	Action    string `json:"action" validate:"required,min=1,max=128"`
	Effect    string `json:"effect" validate:"omitempty,oneof=allow deny"`
	Condition string `json:"condition" validate:"omitempty,oneof=none owner shared"`
}

type assignmentRequest struct {
	UserID string `json:"user_id" validate:"required,min=1,max=128"`
	RoleID string `json:"role_id" validate:"required,min=1,max=128"`
}

type syncRoleRequest struct {
	UserID string `json:"user_id" validate:"required,min=1,max=128"`
	Role   string `json:"role" validate:"required,min=1,max=128"`
}

// POST /api/roles
func (h *RoleHandler) CreateGlobal(c *gin.Context) {
	h.create(c, "")
}

// POST /api/tenants/:tenantId/roles
func (h *RoleHandler) CreateTenant(c *gin.Context) {
	h.create(c, c.Param("tenantId"))
}

func (h *RoleHandler) create(c *gin.Context, tenantID string) {
	var body createRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.CreateRole(requestContext(c), services.CreateRoleInput{
		TenantID:    tenantID,
		Name:        strings.TrimSpace(body.Name),
		Description: strings.TrimSpace(body.Description),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// GET /api/roles
func (h *RoleHandler) ListGlobal(c *gin.Context) {
	roles, err := h.svc.ListGlobalRoles(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/tenants/:tenantId/roles
func (h *RoleHandler) ListTenant(c *gin.Context) {
	roles, err := h.svc.ListTenantRoles(requestContext(c), c.Param("tenantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.svc.GetRole(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// PATCH /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	var body updateRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.UpdateRole(requestContext(c), c.Param("id"), policy.UpdateRoleInput{
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteRole(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/tenants/:tenantId/policies
func (h *RoleHandler) AttachPolicy(c *gin.Context) {
	var body policyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	created, err := h.svc.AddPolicy(requestContext(c), services.AddPolicyInput{
		Role:      body.Role,
		TenantID:  c.Param("tenantId"),
		Resource:  body.Resource,
		Action:    body.Action,
		Effect:    body.Effect,
		Condition: body.Condition,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"created": created})
}

// DELETE /api/tenants/:tenantId/policies
func (h *RoleHandler) DetachPolicy(c *gin.Context) {
	var body policyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	removed, err := h.svc.RemovePolicy(requestContext(c), services.AddPolicyInput{
		Role:      body.Role,
		TenantID:  c.Param("tenantId"),
		Resource:  body.Resource,
		Action:    body.Action,
		Effect:    body.Effect,
		Condition: body.Condition,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

// GET /api/tenants/:tenantId/policies
func (h *RoleHandler) ListPolicies(c *gin.Context) {
	filter := policy.PolicyFilter{
		Role:     strings.TrimSpace(c.Query("role")),
		Resource: strings.TrimSpace(c.Query("resource")),
		Action:   strings.TrimSpace(c.Query("action")),
		Effect:   strings.TrimSpace(c.Query("effect")),
	}

	rules, err := h.svc.ListPolicies(requestContext(c), c.Param("tenantId"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, rules)
}

// POST /api/tenants/:tenantId/assignments
func (h *RoleHandler) Assign(c *gin.Context) {
	var body assignmentRequest
	if !bindAndValidate(c, &body) {
		return
	}

	created, err := h.svc.AssignRole(requestContext(c), services.AssignRoleInput{
		UserID:   body.UserID,
		RoleID:   body.RoleID,
		TenantID: c.Param("tenantId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	response.Success(c, status, gin.H{"created": created})
}

// DELETE /api/tenants/:tenantId/assignments
func (h *RoleHandler) Unassign(c *gin.Context) {
	var body assignmentRequest
	if !bindAndValidate(c, &body) {
		return
	}

	removed, err := h.svc.RemoveRole(requestContext(c), services.AssignRoleInput{
		UserID:   body.UserID,
		RoleID:   body.RoleID,
		TenantID: c.Param("tenantId"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}

// PUT /api/tenants/:tenantId/members/role
func (h *RoleHandler) SyncMembership(c *gin.Context) {
	var body syncRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	err := h.svc.SyncRole(requestContext(c), body.UserID, c.Param("tenantId"), body.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"synced": true})
}

// GET /api/tenants/:tenantId/assignments
func (h *RoleHandler) ListAssignments(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		response.Error(c, errors.NewBadRequest("user_id is required"))
		return
	}

	assignments, err := h.svc.ListAssignments(requestContext(c), userID, c.Param("tenantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, assignments)
}
