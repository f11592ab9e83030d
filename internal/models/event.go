package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType controls how registrations are admitted.
type EventType string

const (
	// EventTypeOpen auto-approves every registration.
	EventTypeOpen EventType = "OPEN"
	// EventTypePrivate requires explicit admin approval.
	EventTypePrivate EventType = "PRIVATE"
)

// Event represents a published event owned by exactly one tenant.
type Event struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	EventName    string     `json:"event_name"`
	LocationName string     `json:"location_name"`
	EventType    EventType  `json:"event_type"`
	Description  *string    `json:"description,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	ShareLink    string     `json:"share_link"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
