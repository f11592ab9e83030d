package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationStatus is the approval state of a registration.
type RegistrationStatus string

const (
	StatusPending  RegistrationStatus = "PENDING"
	StatusApproved RegistrationStatus = "APPROVED"
	StatusRejected RegistrationStatus = "REJECTED"
)

// Registration is one registrant's request to attend one event. At most one
// registration exists per (event, email). The QR credential is set only when
// the registration is approved; Scanned flips to true exactly once, at the
// venue gate.
type Registration struct {
	ID        uuid.UUID          `json:"id"`
	EventID   uuid.UUID          `json:"event_id"`
	UserID    *uuid.UUID         `json:"user_id,omitempty"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Phone     *string            `json:"phone,omitempty"`
	Status    RegistrationStatus `json:"status"`
	QRCode    *string            `json:"qr_code,omitempty"`
	Scanned   bool               `json:"scanned"`
	ScannedAt *time.Time         `json:"scanned_at,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// HasCredential reports whether a credential has been issued for this
// registration.
func (r *Registration) HasCredential() bool {
	return r.QRCode != nil && *r.QRCode != ""
}
