package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Audit event types emitted by the engine.
const (
	EventRoleCreated         = "role.created"
	EventRoleUpdated         = "role.updated"
	EventRoleDeleted         = "role.deleted"
	EventRoleAssigned        = "role.assigned"
	EventRoleRemoved         = "role.removed"
	EventRoleSynced          = "role.synced"
	EventPolicyAdded         = "policy.added"
	EventPolicyRemoved       = "policy.removed"
	EventPermissionSuspended = "violation.permission_suspended"
	EventPermissionRestored  = "violation.permission_restored"
	EventOrgSuspended        = "violation.organization_suspended"
	EventOrgRestored         = "violation.organization_restored"
	EventAuditExported       = "audit.exported"
)

// AuditEvent describes a registered audit event type.
type AuditEvent struct {
	Type        string
	Description string
}

type eventRegistry struct {
	mu     sync.RWMutex
	events map[string]AuditEvent
}

var auditEvents = &eventRegistry{events: make(map[string]AuditEvent)}

var (
	errEmptyEventType     = errors.New("audit events: type is required")
	errDuplicateEventType = errors.New("audit events: already registered")
)

// RegisterAuditEvent adds an event type to the registry. Duplicate
// registrations are rejected so modules cannot silently shadow each other.
func RegisterAuditEvent(event AuditEvent) error {
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return errEmptyEventType
	}

	auditEvents.mu.Lock()
	defer auditEvents.mu.Unlock()

	if _, exists := auditEvents.events[event.Type]; exists {
		return fmt.Errorf("%w: %s", errDuplicateEventType, event.Type)
	}
	auditEvents.events[event.Type] = event
	return nil
}

// KnownAuditEvent reports whether the event type has been registered.
func KnownAuditEvent(eventType string) bool {
	auditEvents.mu.RLock()
	defer auditEvents.mu.RUnlock()

	_, ok := auditEvents.events[eventType]
	return ok
}

// AuditEventTypes returns the registered event types sorted by name.
func AuditEventTypes() []AuditEvent {
	auditEvents.mu.RLock()
	defer auditEvents.mu.RUnlock()

	out := make([]AuditEvent, 0, len(auditEvents.events))
	for _, event := range auditEvents.events {
		out = append(out, event)
	}
	return out
}

func init() {
	events := []AuditEvent{
		{Type: EventRoleCreated, Description: "Role created"},
		{Type: EventRoleUpdated, Description: "Role metadata updated"},
		{Type: EventRoleDeleted, Description: "Role deleted"},
		{Type: EventRoleAssigned, Description: "Role assigned to user"},
		{Type: EventRoleRemoved, Description: "Role assignment removed"},
		{Type: EventRoleSynced, Description: "Membership role synchronised"},
		{Type: EventPolicyAdded, Description: "Permission tuple added"},
		{Type: EventPolicyRemoved, Description: "Permission tuple removed"},
		{Type: EventPermissionSuspended, Description: "Permission suspended by violation overlay"},
		{Type: EventPermissionRestored, Description: "Suspended permission restored"},
		{Type: EventOrgSuspended, Description: "Organization lockdown recorded"},
		{Type: EventOrgRestored, Description: "Organization lockdown lifted"},
		{Type: EventAuditExported, Description: "Audit log export generated"},
	}

	for _, event := range events {
		if err := RegisterAuditEvent(event); err != nil {
			panic(err)
		}
	}
}
