// Package audit records who changed what across the service-job backend.
// Every mutating API call produces one event; readers page through them
// via the admin audit endpoint.
package audit

import (
	"context"
	"time"
)

// Event is a single recorded mutation.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Actor        string    `json:"actor"`      // staff email or "anonymous"
	ActorType    string    `json:"actor_type"` // "staff" or "anonymous"
	Action       string    `json:"action"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	StatusCode   int       `json:"status_code"`
}

// ListOptions filters and pages the event list. Zero values mean no filter.
type ListOptions struct {
	Limit        int
	Offset       int
	Actor        string
	Action       string
	ResourceType string
	Since        *time.Time
	Until        *time.Time
}

// Logger persists and queries audit events.
type Logger interface {
	Log(ctx context.Context, event *Event) error
	List(ctx context.Context, opts ListOptions) ([]*Event, int, error)
	GetByResource(ctx context.Context, resourceType, resourceID string) ([]*Event, error)
}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

const (
	ResourceJob          = "job"
	ResourceJobUpdate    = "job_update"
	ResourceProperty     = "property"
	ResourceTenant       = "tenant"
	ResourcePrivateOwner = "private_owner"
	ResourceAgency       = "agency"
	ResourceManager      = "agency_manager"
	ResourceIssueType    = "issue_type"
	ResourceUser         = "user"
)

const (
	ActorTypeStaff     = "staff"
	ActorTypeAnonymous = "anonymous"
)
