package services

import (
	"context"
	"encoding/json"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"
)

// PaymentNotification is the external payment-provider signal: order
// reference plus an approved/rejected decision.
type PaymentNotification struct {
	OrderReference string  `json:"order_reference"`
	Status         string  `json:"status"` // approved, rejected
	Amount         float64 `json:"amount"`
	TransactionID  string  `json:"transaction_id"`
}

// PaymentService consumes payment confirmations from the provider's
// PubNub channel and drives the orchestrator. It never touches ticket
// or inventory rows itself.
type PaymentService struct {
	pn      *pubnub.PubNub
	orders  *OrderService
	channel string
}

func NewPaymentService(pn *pubnub.PubNub, orders *OrderService, channel string) *PaymentService {
	return &PaymentService{
		pn:      pn,
		orders:  orders,
		channel: channel,
	}
}

// Subscribe listens for payment notifications until ctx is canceled.
// Run it on its own goroutine.
func (s *PaymentService) Subscribe(ctx context.Context) {
	if s.pn == nil {
		slog.Warn("pubnub not configured, payment subscription disabled")
		return
	}

	listener := pubnub.NewListener()
	s.pn.AddListener(listener)
	s.pn.Subscribe().Channels([]string{s.channel}).Execute()

	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				slog.Info("payment channel connected", "channel", s.channel)
			case pubnub.PNReconnectedCategory:
				slog.Info("payment channel reconnected", "channel", s.channel)
			case pubnub.PNDisconnectedCategory:
				slog.Warn("payment channel disconnected", "channel", s.channel)
			}

		case message := <-listener.Message:
			s.handleNotification(ctx, message)

		case <-ctx.Done():
			s.pn.Unsubscribe().Channels([]string{s.channel}).Execute()
			return
		}
	}
}

func (s *PaymentService) handleNotification(ctx context.Context, message *pubnub.PNMessage) {
	data, ok := message.Message.(map[string]any)
	if !ok {
		slog.Warn("unexpected payment message shape")
		return
	}

	jsonData, _ := json.Marshal(data)

	var notification PaymentNotification
	if err := json.Unmarshal(jsonData, &notification); err != nil {
		slog.Error("failed to parse payment notification", "error", err)
		return
	}

	s.Apply(ctx, notification)
}

// Apply runs one notification through the orchestrator. Shared by the
// PubNub path and the webhook handler so both arrive at the same
// settlement logic.
func (s *PaymentService) Apply(ctx context.Context, notification PaymentNotification) {
	approved := notification.Status == "approved"

	result, err := s.orders.ConfirmPayment(ctx, notification.OrderReference, approved)
	if err != nil {
		slog.Error("failed to apply payment notification",
			"reference", notification.OrderReference, "approved", approved, "error", err)
		return
	}

	slog.Info("payment notification applied",
		"reference", notification.OrderReference,
		"order", result.Order.ID,
		"status", result.Order.Status)
}
