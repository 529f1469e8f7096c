package models

import (
	"time"
)

type ValidationOutcome string

const (
	OutcomeSuccess     ValidationOutcome = "success"
	OutcomeAlreadyUsed ValidationOutcome = "already_used"
	OutcomeRevoked     ValidationOutcome = "revoked"
	OutcomeExpired     ValidationOutcome = "expired"
	OutcomeInvalid     ValidationOutcome = "invalid"
)

// ValidationRecord is one append-only audit entry per scan attempt.
// TicketID is empty when no ticket matched the presented token.
type ValidationRecord struct {
	ID          string            `json:"id"`
	TicketID    string            `json:"ticket_id,omitempty"`
	Outcome     ValidationOutcome `json:"outcome"`
	DeviceID    string            `json:"device_id"`
	RemoteAddr  string            `json:"remote_addr"`
	ValidatedAt time.Time         `json:"validated_at"`
}

// ValidationResult is what a scanning client needs to render pass/fail
// without further lookups.
type ValidationResult struct {
	Success        bool              `json:"success"`
	Outcome        ValidationOutcome `json:"outcome"`
	Message        string            `json:"message"`
	TicketID       string            `json:"ticket_id,omitempty"`
	AttendeeName   string            `json:"attendee_name,omitempty"`
	TicketTypeName string            `json:"ticket_type,omitempty"`
	UsedAt         *time.Time        `json:"used_at,omitempty"`
}
