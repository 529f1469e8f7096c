package services

import (
	"context"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"ticket-gate/models"
	"ticket-gate/utils"
)

// PubNubDelivery publishes issued tickets to the delivery channel where
// the email/QR collaborator picks them up. Publishes go through a
// circuit breaker so a misbehaving broker cannot stall checkouts.
type PubNubDelivery struct {
	pn      *pubnub.PubNub
	channel string
	breaker *utils.CircuitBreaker
}

func NewPubNubDelivery(pn *pubnub.PubNub, channel string) *PubNubDelivery {
	return &PubNubDelivery{
		pn:      pn,
		channel: channel,
		breaker: utils.NewCircuitBreaker("ticket-delivery"),
	}
}

func (d *PubNubDelivery) Deliver(ctx context.Context, order *models.Order, tickets []models.IssuedTicket) error {
	if d.pn == nil {
		slog.Warn("pubnub not configured, skipping ticket delivery", "order", order.ID)
		return nil
	}

	payload := map[string]any{
		"type":        "tickets_issued",
		"order_id":    order.ID,
		"reference":   order.ExternalReference,
		"buyer_email": order.BuyerEmail,
		"tickets":     deliveryTickets(tickets),
	}

	return d.breaker.Execute(func() error {
		_, pnStatus, err := d.pn.Publish().
			Channel(d.channel).
			Message(payload).
			Execute()
		if err != nil {
			return fmt.Errorf("publish delivery for order %s: %w", order.ID, err)
		}
		if pnStatus.Error != nil {
			return fmt.Errorf("publish delivery for order %s (status %d): %w", order.ID, pnStatus.StatusCode, pnStatus.Error)
		}
		return nil
	})
}

func deliveryTickets(tickets []models.IssuedTicket) []map[string]any {
	out := make([]map[string]any, len(tickets))
	for i, t := range tickets {
		out[i] = map[string]any{
			"ticket_id":     t.Ticket.ID,
			"attendee_name": t.Ticket.AttendeeName,
			"token":         t.RawToken,
			"scan_url":      t.ScanURL,
		}
	}
	return out
}
