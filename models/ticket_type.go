package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TicketTypeStatus string

const (
	TicketTypeActive   TicketTypeStatus = "active"
	TicketTypeInactive TicketTypeStatus = "inactive"
	TicketTypeSoldOut  TicketTypeStatus = "sold_out"
)

type TicketType struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	BasePrice  decimal.Decimal  `json:"base_price"`
	ServiceFee decimal.Decimal  `json:"service_fee"`
	Capacity   int              `json:"capacity"`
	SoldCount  int              `json:"sold_count"`
	Status     TicketTypeStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
}

// FinalPrice is the per-ticket charge: base price plus service fee.
func (t *TicketType) FinalPrice() decimal.Decimal {
	return t.BasePrice.Add(t.ServiceFee)
}

// Remaining is derived, never stored.
func (t *TicketType) Remaining() int {
	r := t.Capacity - t.SoldCount
	if r < 0 {
		return 0
	}
	return r
}

// EffectiveStatus derives sold_out from capacity at read time so the
// stored status can never go stale relative to sold_count.
func (t *TicketType) EffectiveStatus() TicketTypeStatus {
	if t.Status == TicketTypeActive && t.Remaining() == 0 {
		return TicketTypeSoldOut
	}
	return t.Status
}
