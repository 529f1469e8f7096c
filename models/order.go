package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderPaid     OrderStatus = "paid"
	OrderRefunded OrderStatus = "refunded"
	OrderCanceled OrderStatus = "canceled"
)

type Order struct {
	ID                string          `json:"id"`
	BuyerName         string          `json:"buyer_name"`
	BuyerEmail        string          `json:"buyer_email"`
	TicketTypeID      string          `json:"ticket_type_id"`
	Quantity          int             `json:"quantity"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            OrderStatus     `json:"status"`
	IdempotencyKey    string          `json:"idempotency_key"`
	ExternalReference string          `json:"external_reference"`
	Attendees         []AttendeeInfo  `json:"attendees,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
}

// AttendeeInfo is the per-seat identity supplied at checkout.
type AttendeeInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	DNI       string `json:"dni"`
}

func (a AttendeeInfo) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}
