package models

import (
	"time"
)

type TicketStatus string

const (
	TicketValid   TicketStatus = "valid"
	TicketUsed    TicketStatus = "used"
	TicketRevoked TicketStatus = "revoked"
	TicketExpired TicketStatus = "expired"
)

type Ticket struct {
	ID            string       `json:"id"`
	OrderID       string       `json:"order_id"`
	TicketTypeID  string       `json:"ticket_type_id"`
	TokenDigest   string       `json:"-"`
	Status        TicketStatus `json:"status"`
	AttendeeName  string       `json:"attendee_name"`
	AttendeeEmail string       `json:"attendee_email"`
	AttendeeDNI   string       `json:"attendee_dni,omitempty"`
	UsedAt        *time.Time   `json:"used_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// IssuedTicket pairs a newly created ticket with its raw token. The raw
// token exists only in this value on its way to the delivery channel;
// storage only ever sees the digest.
type IssuedTicket struct {
	Ticket   Ticket `json:"ticket"`
	RawToken string `json:"token"`
	ScanURL  string `json:"scan_url"`
}
